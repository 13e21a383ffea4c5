package rule

import (
	"encoding/json"
	"fmt"
)

type sourceRule struct {
	Source string `json:"source"`
}

type wireRule struct {
	Zone       string     `json:"zone"`
	Type       string     `json:"type"`
	Permanent  bool       `json:"permanent"`
	AgentID    string     `json:"agentId"`
	Family     string     `json:"family"`
	Port       string     `json:"port"`
	Protocol   string     `json:"protocol"`
	Using      bool       `json:"using"`
	Policy     bool       `json:"policy"`
	SourceRule sourceRule `json:"sourceRule"`
	Descriptor string     `json:"descriptor"`
	Value      string     `json:"value,omitempty"`
}

func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRule{
		Zone:       r.Zone,
		Type:       r.Kind.String(),
		Permanent:  r.Permanent,
		AgentID:    r.AgentID,
		Family:     r.Family.String(),
		Port:       r.Port,
		Protocol:   r.Protocol,
		Using:      r.InUse,
		Policy:     r.Policy,
		SourceRule: sourceRule{Source: NormalizeSource(r.Source)},
		Descriptor: r.Descriptor,
		Value:      r.Value,
	})
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var w wireRule
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind := KindPort
	if w.Type != "" {
		k, err := ParseKind(w.Type)
		if err != nil {
			return fmt.Errorf("decode rule: %w", err)
		}
		kind = k
	}
	fam, err := ParseFamily(w.Family)
	if err != nil {
		return fmt.Errorf("decode rule: %w", err)
	}
	*r = Rule{
		Zone:       w.Zone,
		Kind:       kind,
		Family:     fam,
		Port:       w.Port,
		Protocol:   w.Protocol,
		Source:     NormalizeSource(w.SourceRule.Source),
		Policy:     w.Policy,
		InUse:      w.Using,
		Permanent:  w.Permanent,
		Descriptor: w.Descriptor,
		AgentID:    w.AgentID,
		Value:      w.Value,
	}
	return nil
}
