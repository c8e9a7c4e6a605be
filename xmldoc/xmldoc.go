// Package xmldoc builds XML documents whose element order matters.
//
// Callers only ever append: a Node is a handle to an element that can grow
// children and attributes, it cannot read or rewrite its siblings.
package xmldoc

import (
	"github.com/beevik/etree"
)

const XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"

// Child is one (name, text) pair for AppendWithChildren.
type Child struct {
	Name string
	Text string
}

type Attr struct {
	Key   string
	Value string
}

type Document struct {
	doc *etree.Document
}

// NewDocument creates a UTF-8 document whose root element is name, declared
// in the given default namespace.
func NewDocument(name string, namespace string) *Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(name)
	if namespace != "" {
		root.CreateAttr("xmlns", namespace)
	}
	return &Document{doc: doc}
}

func (d *Document) Root() Node {
	return Node{el: d.doc.Root()}
}

// String serializes the document with two space indentation.
func (d *Document) String() (string, error) {
	d.doc.Indent(2)
	return d.doc.WriteToString()
}

func (d *Document) Bytes() ([]byte, error) {
	d.doc.Indent(2)
	return d.doc.WriteToBytes()
}

type Node struct {
	el *etree.Element
}

// Append adds a child element holding text. Empty text yields an empty
// element.
func (n Node) Append(name string, text string) Node {
	child := n.el.CreateElement(name)
	if text != "" {
		child.SetText(text)
	}
	return Node{el: child}
}

func (n Node) AppendWithAttrs(name string, text string, attrs ...Attr) Node {
	child := n.Append(name, text)
	for _, a := range attrs {
		child.el.CreateAttr(a.Key, a.Value)
	}
	return child
}

// AppendWithChildren adds an element populated by children in the order
// given.
func (n Node) AppendWithChildren(name string, children ...Child) Node {
	parent := n.Append(name, "")
	for _, c := range children {
		parent.Append(c.Name, c.Text)
	}
	return parent
}

func (n Node) SetAttr(key string, value string) Node {
	n.el.CreateAttr(key, value)
	return n
}

// DeclareNamespace adds an xmlns declaration. An empty prefix declares the
// default namespace.
func (n Node) DeclareNamespace(prefix string, uri string) Node {
	if prefix == "" {
		return n.SetAttr("xmlns", uri)
	}
	return n.SetAttr("xmlns:"+prefix, uri)
}

// DeclareSchemaLocation declares the xsi namespace and points
// xsi:schemaLocation at "namespace schema".
func (n Node) DeclareSchemaLocation(namespace string, schema string) Node {
	n.DeclareNamespace("xsi", XSINamespace)
	return n.SetAttr("xsi:schemaLocation", namespace+" "+schema)
}

func (n Node) Name() string {
	return n.el.FullTag()
}
