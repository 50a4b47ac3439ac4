package codebase

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// Method is a method or constructor declared in a source file.
type Method struct {
	Name      string
	Signature string
	Body      string
}

// parseJava extracts every method and constructor declaration, nested
// classes included, in source order. Parsers are not shared across goroutines.
func parseJava(ctx context.Context, source []byte) ([]Method, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse java: %w", err)
	}
	defer tree.Close()

	var methods []Method
	collectMethods(tree.RootNode(), source, &methods)
	return methods, nil
}

func collectMethods(node *sitter.Node, source []byte, out *[]Method) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "method_declaration", "constructor_declaration":
		if m, ok := methodFromNode(node, source); ok {
			*out = append(*out, m)
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		collectMethods(node.NamedChild(i), source, out)
	}
}

func methodFromNode(node *sitter.Node, source []byte) (Method, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return Method{}, false
	}

	end := node.EndByte()
	if body := node.ChildByFieldName("body"); body != nil {
		end = body.StartByte()
	}

	var parts []string
	start := node.StartByte()
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "modifiers" {
			continue
		}
		// annotations are noise in a signature; keep only modifier keywords
		for j := 0; j < int(child.ChildCount()); j++ {
			mod := child.Child(j)
			switch mod.Type() {
			case "marker_annotation", "annotation", "line_comment", "block_comment":
				continue
			}
			parts = append(parts, mod.Content(source))
		}
		start = child.EndByte()
		break
	}
	if start < end {
		parts = append(parts, string(source[start:end]))
	}

	signature := normalizeSpace(strings.TrimSuffix(strings.TrimSpace(strings.Join(parts, " ")), ";"))
	return Method{
		Name:      nameNode.Content(source),
		Signature: signature,
		Body:      node.Content(source),
	}, true
}

// normalizeSpace collapses whitespace runs and tightens spacing around
// parentheses and commas so signatures compare stably.
func normalizeSpace(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := strings.NewReplacer("( ", "(", " )", ")", " ,", ",", " (", "(")
	return r.Replace(s)
}
