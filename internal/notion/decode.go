/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package notion

import (
	"encoding/json"
	"strings"
)

type richText struct {
	PlainText string `json:"plain_text"`
}

type formula struct {
	Type    string  `json:"type"`
	String  *string `json:"string"`
	Boolean *bool   `json:"boolean"`
}

// property is the subset of a Notion property value this package reads.
type property struct {
	Type     string     `json:"type"`
	Title    []richText `json:"title"`
	RichText []richText `json:"rich_text"`
	Formula  *formula   `json:"formula"`
	Checkbox *bool      `json:"checkbox"`
}

func lookup(props map[string]json.RawMessage, name string) (property, bool) {
	raw, ok := props[name]
	if !ok || len(raw) == 0 {
		return property{}, false
	}
	var p property
	if err := json.Unmarshal(raw, &p); err != nil {
		return property{}, false
	}
	return p, true
}

func joinPlain(parts []richText) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.PlainText)
	}
	return strings.TrimSpace(b.String())
}

// plainText reads title, rich_text and string formulas. Anything else, or
// blank text, yields "".
func plainText(props map[string]json.RawMessage, name string) string {
	p, ok := lookup(props, name)
	if !ok {
		return ""
	}
	switch p.Type {
	case "title":
		return joinPlain(p.Title)
	case "rich_text":
		return joinPlain(p.RichText)
	case "formula":
		if p.Formula != nil && p.Formula.Type == "string" && p.Formula.String != nil {
			return strings.TrimSpace(*p.Formula.String)
		}
	}
	return ""
}

// checkbox returns the checkbox value, or nil when the property is missing
// or is not a checkbox.
func checkbox(props map[string]json.RawMessage, name string) *bool {
	p, ok := lookup(props, name)
	if !ok || p.Type != "checkbox" || p.Checkbox == nil {
		return nil
	}
	v := *p.Checkbox
	return &v
}

// flag reads a checkbox or a boolean formula.
func flag(props map[string]json.RawMessage, name string) *bool {
	if v := checkbox(props, name); v != nil {
		return v
	}
	p, ok := lookup(props, name)
	if !ok || p.Type != "formula" || p.Formula == nil || p.Formula.Type != "boolean" || p.Formula.Boolean == nil {
		return nil
	}
	v := *p.Formula.Boolean
	return &v
}
