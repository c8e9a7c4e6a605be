// Package client is the record store administration command.
package client

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/aep/oairepo/config"
	"github.com/aep/oairepo/repo"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var (
	file       string
	configPath string

	CMD = &cobra.Command{
		Use:   "records",
		Short: "Load and inspect the record store",
	}

	putCmd = &cobra.Command{
		Use:     "put",
		Aliases: []string{"apply"},
		Short:   "Put records and sets from a YAML file",
		Run:     put,
	}

	getCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Get a record",
		Args:  cobra.ExactArgs(1),
		Run:   get,
	}

	editCmd = &cobra.Command{
		Use:   "edit [id]",
		Short: "Edit a record",
		Args:  cobra.ExactArgs(1),
		Run:   edit,
	}

	listCmd = &cobra.Command{
		Use:   "ls",
		Short: "List public records and sets",
		Run:   list,
	}
)

func init() {
	CMD.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	putCmd.Flags().StringVarP(&file, "file", "f", "", "Path to YAML file, - for stdin")
	putCmd.MarkFlagRequired("file")

	CMD.AddCommand(putCmd)
	CMD.AddCommand(getCmd)
	CMD.AddCommand(editCmd)
	CMD.AddCommand(listCmd)
}

// document is one YAML document of an import file. Exactly one of Record
// and Set is set.
type document struct {
	Record *repo.Record `json:"record,omitempty"`
	Set    *repo.Set    `json:"set,omitempty"`
}

func parseDocuments(data []byte) ([]document, error) {
	var docs []document
	for i, part := range strings.Split(string(data), "---\n") {
		if strings.TrimSpace(part) == "" {
			continue
		}

		var doc document
		if err := yaml.UnmarshalStrict([]byte(part), &doc); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if (doc.Record == nil) == (doc.Set == nil) {
			return nil, fmt.Errorf("document %d: need exactly one of record or set", i)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func parseFile(file string) ([]document, error) {
	var data []byte
	var err error

	if file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return parseDocuments(data)
}

func openStore(ctx context.Context) (*repo.SQLStore, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return repo.OpenSQLite(ctx, cfg.Database, cfg.SiteURL)
}

// importDocuments writes sets first so records may refer to sets from the
// same file.
func importDocuments(ctx context.Context, store *repo.SQLStore, docs []document) error {
	for _, doc := range docs {
		if doc.Set == nil {
			continue
		}
		if err := store.PutSet(ctx, doc.Set); err != nil {
			return fmt.Errorf("put set: %w", err)
		}
		fmt.Printf("set/%d\n", doc.Set.ID)
	}
	for _, doc := range docs {
		if doc.Record == nil {
			continue
		}
		if err := store.PutRecord(ctx, doc.Record); err != nil {
			return fmt.Errorf("put record: %w", err)
		}
		fmt.Printf("record/%d\n", doc.Record.ID)
	}
	return nil
}

func put(cmd *cobra.Command, args []string) {
	docs, err := parseFile(file)
	if err != nil {
		log.Fatal(err)
	}

	store, err := openStore(cmd.Context())
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if err := importDocuments(cmd.Context(), store, docs); err != nil {
		log.Fatal(err)
	}
}

func parseID(arg string) int64 {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "record/"), 10, 64)
	if err != nil || id <= 0 {
		log.Fatalf("Invalid record id %q", arg)
	}
	return id
}

func get(cmd *cobra.Command, args []string) {
	store, err := openStore(cmd.Context())
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	rec, err := store.Record(cmd.Context(), parseID(args[0]))
	if err != nil {
		log.Fatalf("Failed to get record: %v", err)
	}

	enc, err := yaml.Marshal(document{Record: rec})
	if err != nil {
		log.Fatalf("Failed to encode as YAML: %v", err)
	}
	os.Stdout.Write(enc)
}

func list(cmd *cobra.Command, args []string) {
	store, err := openStore(cmd.Context())
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	sets, _, err := store.ListSets(cmd.Context(), repo.SetQuery{IncludeEmpty: true})
	if err != nil {
		log.Fatal(err)
	}
	for _, s := range sets {
		fmt.Printf("set/%d\t%s\n", s.ID, s.Name)
	}

	records, _, err := store.FindPublicRecords(cmd.Context(), repo.Query{})
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range records {
		title := ""
		if t := r.ElementTexts(repo.DublinCore, "Title"); len(t) > 0 {
			title = t[0]
		}
		fmt.Printf("record/%d\t%s\t%s\n", r.ID, r.Modified.Format(repo.TimeFormat), title)
	}
}

func edit(cmd *cobra.Command, args []string) {
	store, err := openStore(cmd.Context())
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	rec, err := store.Record(cmd.Context(), parseID(args[0]))
	if err != nil {
		log.Fatalf("Failed to get record: %v", err)
	}

	tmpfile, err := os.CreateTemp("", "oairepo-edit-*.yaml")
	if err != nil {
		log.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	enc, err := yaml.Marshal(document{Record: rec})
	if err != nil {
		log.Fatal(err)
	}
	tmpfile.Write(enc)
	tmpfile.Close()

	originalInfo, err := os.Stat(tmpfile.Name())
	if err != nil {
		log.Fatal(err)
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vim"
	}
	cmd2 := exec.Command(editor, tmpfile.Name())
	cmd2.Stdin = os.Stdin
	cmd2.Stdout = os.Stdout
	cmd2.Stderr = os.Stderr
	if err := cmd2.Run(); err != nil {
		log.Fatal(err)
	}

	newInfo, err := os.Stat(tmpfile.Name())
	if err != nil {
		log.Fatal(err)
	}
	if newInfo.ModTime() == originalInfo.ModTime() {
		fmt.Println("Edit cancelled, no changes made")
		return
	}

	docs, err := parseFile(tmpfile.Name())
	if err != nil {
		log.Fatal(err)
	}
	if err := importDocuments(cmd.Context(), store, docs); err != nil {
		log.Fatal(err)
	}
}
