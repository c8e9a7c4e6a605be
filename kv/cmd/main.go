package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aep/oairepo/config"
	"github.com/aep/oairepo/kv"
	"github.com/aep/oairepo/token"
	"github.com/spf13/cobra"
)

var configPath string

var CMD = &cobra.Command{
	Use:   "kv",
	Short: "direct low level access to the token store",
}

func init() {
	CMD.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	CMD.AddCommand(listCmd)
	CMD.AddCommand(getCmd)
	CMD.AddCommand(delCmd)
	CMD.AddCommand(tokensCmd)
	CMD.AddCommand(purgeCmd)
}

func open() kv.KV {
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(err)
	}
	k, err := kv.Open(cfg.KV.Backend, cfg.KV.Path, cfg.KV.PDEndpoints)
	if err != nil {
		panic(err)
	}
	return k
}

var listCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all keys",
	Run: func(cmd *cobra.Command, args []string) {
		k := open()
		defer k.Close()

		r := k.Read()
		defer r.Close()
		for item, err := range r.Iter(cmd.Context(), []byte{}, []byte{}) {
			if err != nil {
				panic(err)
			}
			fmt.Println(escapeNonPrintable(item.K))
		}
	},
}

var getCmd = &cobra.Command{
	Use:   "get [key...]",
	Short: "Get values for one or more keys",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		k := open()
		defer k.Close()

		r := k.Read()
		defer r.Close()
		lines, err := getValues(cmd.Context(), r, args)
		if err != nil {
			panic(err)
		}
		for _, line := range lines {
			fmt.Println(line)
		}
	},
}

// getValues reads keys in one batch and formats them in argument order.
// A single key prints just its value.
func getValues(ctx context.Context, r kv.Read, keys []string) ([]string, error) {
	raw := make([][]byte, len(keys))
	for i, key := range keys {
		raw[i] = []byte(key)
	}
	values, err := r.BatchGet(ctx, raw)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, key := range keys {
		v, ok := values[key]
		switch {
		case len(keys) == 1:
			lines = append(lines, escapeNonPrintable(v))
		case ok:
			lines = append(lines, key+"\t"+escapeNonPrintable(v))
		default:
			lines = append(lines, key+"\t(not found)")
		}
	}
	return lines, nil
}

var delCmd = &cobra.Command{
	Use:     "del [key]",
	Aliases: []string{"rm"},
	Short:   "Delete a key",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		k := open()
		defer k.Close()

		w := k.Write()
		defer w.Close()
		if err := w.Del([]byte(args[0])); err != nil {
			panic(err)
		}
		if err := w.Commit(cmd.Context()); err != nil {
			panic(err)
		}
	},
}

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List resumption tokens",
	Run: func(cmd *cobra.Command, args []string) {
		k := open()
		defer k.Close()

		tokens, err := token.NewStore(k).List(cmd.Context())
		if err != nil {
			panic(err)
		}
		now := time.Now()
		for _, t := range tokens {
			state := "valid"
			if t.Expired(now) {
				state = "expired"
			}
			fmt.Printf("%d\t%s\t%s\tcursor=%d\t%s\t%s\n",
				t.ID, t.Verb, t.MetadataPrefix, t.Cursor, t.Expiration.Format(time.RFC3339), state)
		}
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge-tokens",
	Short: "Delete expired resumption tokens",
	Run: func(cmd *cobra.Command, args []string) {
		k := open()
		defer k.Close()

		n, err := token.NewStore(k).PurgeExpired(cmd.Context(), time.Now())
		if err != nil {
			panic(err)
		}
		fmt.Printf("purged %d tokens\n", n)
	},
}

func escapeNonPrintable(b []byte) string {
	var result strings.Builder
	for _, c := range b {
		if c >= 32 && c <= 126 {
			result.WriteByte(c)
		} else {
			fmt.Fprintf(&result, "\\x%02x", c)
		}
	}
	return result.String()
}
