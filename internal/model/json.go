package model

import "encoding/json"

// JSON rendering for tree nodes, used by inspection output. Kind
// discriminators make the closed Node set decodable by non-Go consumers;
// nothing here reads trees back in.

type elementJSON struct {
	Kind        string     `json:"kind"`
	Tag         string     `json:"tag"`
	ID          NodeID     `json:"id,omitempty"`
	Loc         Span       `json:"loc"`
	SelfClosing bool       `json:"selfClosing,omitempty"`
	Fence       *FenceInfo `json:"fence,omitempty"`
	Props       []Prop     `json:"props,omitempty"`
	Children    []Node     `json:"children,omitempty"`
}

func (e *Element) MarshalJSON() ([]byte, error) {
	return json.Marshal(elementJSON{
		Kind:        "element",
		Tag:         e.Tag,
		ID:          e.ID,
		Loc:         e.Loc,
		SelfClosing: e.SelfClosing,
		Fence:       e.Fence,
		Props:       e.Props,
		Children:    e.Children,
	})
}

type textJSON struct {
	Kind    string `json:"kind"`
	ID      NodeID `json:"id,omitempty"`
	Loc     Span   `json:"loc"`
	Value   string `json:"value"`
	Comment bool   `json:"comment,omitempty"`
}

func (t *Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(textJSON{
		Kind:    "text",
		ID:      t.ID,
		Loc:     t.Loc,
		Value:   t.Value,
		Comment: t.Comment,
	})
}

type propJSON struct {
	Name   string `json:"name,omitempty"`
	Value  any    `json:"value"`
	Spread string `json:"spread,omitempty"`
	Loc    Span   `json:"loc"`
}

func (p Prop) MarshalJSON() ([]byte, error) {
	out := propJSON{Name: p.Name, Loc: p.Loc}

	if p.Spread {
		out.Spread = p.Val.Raw
		return json.Marshal(out)
	}

	switch p.Val.Kind {
	case PropBare:
		out.Value = true
	case PropExpr:
		out.Value = map[string]string{"expr": p.Val.Raw}
	default:
		out.Value = p.Val.Str
	}

	return json.Marshal(out)
}
