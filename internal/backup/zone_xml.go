package backup

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"fwagent/internal/firewalld"
	"fwagent/internal/richrule"
)

const (
	maxXMLFileSize   = 1 << 20
	maxParsedXMLSize = 1 << 20
)

type zoneXML struct {
	XMLName     xml.Name    `xml:"zone"`
	Target      string      `xml:"target,attr"`
	Short       string      `xml:"short"`
	Description string      `xml:"description"`
	Services    []nameXML   `xml:"service"`
	Ports       []portXML   `xml:"port"`
	Interfaces  []nameXML   `xml:"interface"`
	Sources     []sourceXML `xml:"source"`
	Masquerade  *struct{}   `xml:"masquerade"`
	Rules       []ruleXML   `xml:"rule"`
}

type nameXML struct {
	Name string `xml:"name,attr"`
}

type portXML struct {
	Port     string `xml:"port,attr"`
	Protocol string `xml:"protocol,attr"`
}

type valueXML struct {
	Value string `xml:"value,attr"`
}

type sourceXML struct {
	Address string `xml:"address,attr"`
	Mac     string `xml:"mac,attr"`
	IPSet   string `xml:"ipset,attr"`
}

type ruleXML struct {
	Family      string      `xml:"family,attr"`
	Priority    string      `xml:"priority,attr"`
	Source      *addressXML `xml:"source"`
	Destination *addressXML `xml:"destination"`
	Service     *nameXML    `xml:"service"`
	Port        *portXML    `xml:"port"`
	Protocol    *valueXML   `xml:"protocol"`
	SourcePort  *portXML    `xml:"source-port"`
	Log         *logXML     `xml:"log"`
	Accept      *verdictXML `xml:"accept"`
	Reject      *verdictXML `xml:"reject"`
	Drop        *verdictXML `xml:"drop"`
	Masquerade  *struct{}   `xml:"masquerade"`
}

type addressXML struct {
	Address string `xml:"address,attr"`
	Invert  string `xml:"invert,attr"`
}

type logXML struct {
	Prefix string    `xml:"prefix,attr"`
	Level  string    `xml:"level,attr"`
	Limit  *valueXML `xml:"limit"`
}

type verdictXML struct {
	Type  string    `xml:"type,attr"`
	Limit *valueXML `xml:"limit"`
}

func ParseZoneXMLFile(path string) (*firewalld.Zone, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxXMLFileSize {
		return nil, fmt.Errorf("zone file %s too large (%d bytes)", path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseZoneXML(data)
}

// ReadZoneRules returns the plain ports and rich rules persisted in a zone
// file, in the same shapes the live zone readers produce.
func ReadZoneRules(path string) ([]firewalld.Port, []string, error) {
	z, err := ParseZoneXMLFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read zone rules %s: %w", path, err)
	}
	return z.Ports, z.RichRules, nil
}

// ParseZoneXML decodes a firewalld zone file. Rich rules are rendered back
// into their firewall-cmd text form. The decoder is strict, so documents that
// declare or reference custom entities are rejected.
func ParseZoneXML(data []byte) (*firewalld.Zone, error) {
	if len(data) > maxParsedXMLSize {
		return nil, fmt.Errorf("zone xml too large (%d bytes)", len(data))
	}
	if bytes.Contains(data, []byte("<!ENTITY")) {
		return nil, fmt.Errorf("zone xml must not declare entities")
	}

	var zx zoneXML
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	if err := dec.Decode(&zx); err != nil {
		return nil, err
	}

	z := &firewalld.Zone{
		Target:      zx.Target,
		Short:       zx.Short,
		Description: zx.Description,
		Masquerade:  zx.Masquerade != nil,
	}
	for _, s := range zx.Services {
		if s.Name != "" {
			z.Services = append(z.Services, s.Name)
		}
	}
	for _, p := range zx.Ports {
		if p.Port != "" && p.Protocol != "" {
			z.Ports = append(z.Ports, firewalld.Port{Port: p.Port, Protocol: p.Protocol})
		}
	}
	for _, i := range zx.Interfaces {
		if i.Name != "" {
			z.Interfaces = append(z.Interfaces, i.Name)
		}
	}
	for _, s := range zx.Sources {
		switch {
		case s.Address != "":
			z.Sources = append(z.Sources, s.Address)
		case s.Mac != "":
			z.Sources = append(z.Sources, "mac:"+s.Mac)
		case s.IPSet != "":
			z.Sources = append(z.Sources, "ipset:"+s.IPSet)
		}
	}
	for _, r := range zx.Rules {
		z.RichRules = append(z.RichRules, r.richRule().String())
	}
	return z, nil
}

func (r ruleXML) richRule() *richrule.Rule {
	out := &richrule.Rule{}
	attr := func(key, value string) richrule.Attr { return richrule.Attr{Key: key, Value: value} }

	if r.Family != "" {
		out.Elements = append(out.Elements, richrule.Element{Attrs: []richrule.Attr{attr("family", r.Family)}})
	}
	if r.Priority != "" {
		out.Elements = append(out.Elements, richrule.Element{Attrs: []richrule.Attr{attr("priority", r.Priority)}})
	}
	if r.Source != nil {
		out.Elements = append(out.Elements, richrule.Element{
			Name:  "source",
			Not:   isTrue(r.Source.Invert),
			Attrs: []richrule.Attr{attr("address", r.Source.Address)},
		})
	}
	if r.Destination != nil {
		out.Elements = append(out.Elements, richrule.Element{
			Name:  "destination",
			Not:   isTrue(r.Destination.Invert),
			Attrs: []richrule.Attr{attr("address", r.Destination.Address)},
		})
	}
	if r.Service != nil {
		out.Elements = append(out.Elements, richrule.Element{Name: "service", Attrs: []richrule.Attr{attr("name", r.Service.Name)}})
	}
	if r.Port != nil {
		out.Elements = append(out.Elements, richrule.Element{Name: "port", Attrs: []richrule.Attr{
			attr("port", r.Port.Port),
			attr("protocol", r.Port.Protocol),
		}})
	}
	if r.Protocol != nil {
		out.Elements = append(out.Elements, richrule.Element{Name: "protocol", Attrs: []richrule.Attr{attr("value", r.Protocol.Value)}})
	}
	if r.SourcePort != nil {
		out.Elements = append(out.Elements, richrule.Element{Name: "source-port", Attrs: []richrule.Attr{
			attr("port", r.SourcePort.Port),
			attr("protocol", r.SourcePort.Protocol),
		}})
	}
	if r.Log != nil {
		e := richrule.Element{Name: "log"}
		if r.Log.Prefix != "" {
			e.Attrs = append(e.Attrs, attr("prefix", r.Log.Prefix))
		}
		if r.Log.Level != "" {
			e.Attrs = append(e.Attrs, attr("level", r.Log.Level))
		}
		out.Elements = append(out.Elements, e)
		out.Elements = appendLimit(out.Elements, r.Log.Limit)
	}
	if r.Masquerade != nil {
		out.Elements = append(out.Elements, richrule.Element{Name: "masquerade", Flag: true})
	}

	for _, v := range []struct {
		name string
		x    *verdictXML
	}{{"accept", r.Accept}, {"reject", r.Reject}, {"drop", r.Drop}} {
		if v.x == nil {
			continue
		}
		e := richrule.Element{Name: v.name, Flag: true}
		out.Elements = append(out.Elements, e)
		if v.x.Type != "" {
			out.Elements = append(out.Elements, richrule.Element{Attrs: []richrule.Attr{attr("type", v.x.Type)}})
		}
		out.Elements = appendLimit(out.Elements, v.x.Limit)
	}
	return out
}

func appendLimit(elems []richrule.Element, limit *valueXML) []richrule.Element {
	if limit == nil || limit.Value == "" {
		return elems
	}
	return append(elems, richrule.Element{Name: "limit", Attrs: []richrule.Attr{{Key: "value", Value: limit.Value}}})
}

func isTrue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true
	default:
		return false
	}
}
