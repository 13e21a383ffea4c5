package ufw

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"fwagent/internal/metrics"
	"fwagent/internal/rule"
)

// MaxPruneIterations bounds the number of prune passes.
const MaxPruneIterations = 10

// Report summarises one conversion run.
type Report struct {
	Converted int
	Inserted  int
	Skipped   int
	Pruned    int
	Passes    int
	Converged bool
}

type conversionKey struct {
	to     string
	action string
	from   string
}

func keyOf(s StatusLine) conversionKey {
	return conversionKey{to: s.To, action: s.Action, from: s.From}
}

type skipKey struct {
	key  conversionKey
	ipv6 bool
}

// Converter rewrites protocol-agnostic port rules into tcp and udp rules
// and then prunes the IPv6 generic rules ufw leaves behind.
//
// Rule numbers shift after every deletion, so the rule list is fetched again
// before each destructive step.
type Converter struct {
	client *Client
}

func NewConverter(client *Client) *Converter {
	return &Converter{client: client}
}

func (cv *Converter) Run(ctx context.Context) (Report, error) {
	var report Report
	converted := make(map[conversionKey]struct{})

	if err := cv.decompose(ctx, converted, &report); err != nil {
		metrics.Get().ConversionRuns.WithLabelValues("error").Inc()
		return report, err
	}
	if len(converted) == 0 {
		report.Converged = true
		metrics.Get().ConversionRuns.WithLabelValues("noop").Inc()
		slog.Info("ufw conversion: nothing to convert")
		return report, nil
	}
	if err := cv.prune(ctx, converted, &report); err != nil {
		metrics.Get().ConversionRuns.WithLabelValues("error").Inc()
		return report, err
	}

	outcome := "converged"
	if !report.Converged {
		outcome = "bounded"
	}
	metrics.Get().ConversionRuns.WithLabelValues(outcome).Inc()
	slog.Info("ufw conversion finished",
		"converted", report.Converted,
		"inserted", report.Inserted,
		"skipped", report.Skipped,
		"pruned", report.Pruned,
		"passes", report.Passes,
		"converged", report.Converged,
	)
	return report, nil
}

// decompose handles one candidate per listing, highest rule number first,
// until no candidate is left.
func (cv *Converter) decompose(ctx context.Context, converted map[conversionKey]struct{}, report *Report) error {
	skipped := make(map[skipKey]struct{})
	for {
		lines, err := cv.client.List(ctx)
		if err != nil {
			return err
		}
		candidates := decomposeCandidates(lines, converted, skipped)
		if len(candidates) == 0 {
			return nil
		}
		c := candidates[0]
		key := keyOf(c.line)

		slog.Info("ufw conversion: replacing generic rule", "number", c.line.RuleNumber, "to", c.line.To, "action", c.line.Action, "from", c.line.From, "ipv6", c.line.IsIPv6)
		if err := cv.client.DeleteNumber(ctx, c.line.RuleNumber); err != nil {
			slog.Warn("ufw conversion: delete failed, leaving rule in place", "number", c.line.RuleNumber, "error", err)
			skipped[skipKey{key: key, ipv6: c.line.IsIPv6}] = struct{}{}
			report.Skipped++
			continue
		}
		for _, proto := range []string{"tcp", "udp"} {
			spec := replacementSpec(c, proto)
			if err := cv.client.Add(ctx, spec); err != nil {
				return fmt.Errorf("insert %s/%s after deleting rule %d: %w", c.line.To, proto, c.line.RuleNumber, err)
			}
			report.Inserted++
		}
		converted[key] = struct{}{}
		report.Converted++
		metrics.Get().ConvertedRules.WithLabelValues("decompose").Inc()
	}
}

// prune deletes the IPv6 generic rules left behind for converted keys.
func (cv *Converter) prune(ctx context.Context, converted map[conversionKey]struct{}, report *Report) error {
	for pass := 1; pass <= MaxPruneIterations; pass++ {
		report.Passes = pass
		lines, err := cv.client.List(ctx)
		if err != nil {
			return err
		}

		var targets []StatusLine
		for _, sl := range lines {
			if !sl.IsIPv6 || !sl.IsConversionCandidate() {
				continue
			}
			if _, ok := converted[keyOf(sl)]; ok {
				targets = append(targets, sl)
			}
		}
		if len(targets) == 0 {
			report.Converged = true
			return nil
		}

		sort.Slice(targets, func(i, j int) bool { return targets[i].RuleNumber > targets[j].RuleNumber })
		for _, sl := range targets {
			if err := cv.client.DeleteNumber(ctx, sl.RuleNumber); err != nil {
				return fmt.Errorf("prune rule %d: %w", sl.RuleNumber, err)
			}
			slog.Info("ufw conversion: pruned IPv6 generic rule", "number", sl.RuleNumber, "to", sl.To, "pass", pass)
			report.Pruned++
			metrics.Get().ConvertedRules.WithLabelValues("prune").Inc()
		}
	}
	slog.Warn("ufw conversion: prune did not converge", "passes", MaxPruneIterations)
	return nil
}

type candidate struct {
	line StatusLine
	// twin is set for an IPv4 rule that ufw also lists as an IPv6 rule.
	twin bool
}

// decomposeCandidates returns the convertible rules, highest number first.
// An IPv6 rule whose IPv4 twin is also listed is left to the twin: the
// replacement for the twin covers both families and prune removes it.
func decomposeCandidates(lines []StatusLine, converted map[conversionKey]struct{}, skipped map[skipKey]struct{}) []candidate {
	v4 := make(map[conversionKey]struct{})
	v6 := make(map[conversionKey]struct{})
	for _, sl := range lines {
		if !sl.IsConversionCandidate() {
			continue
		}
		if sl.IsIPv6 {
			v6[keyOf(sl)] = struct{}{}
		} else {
			v4[keyOf(sl)] = struct{}{}
		}
	}

	var out []candidate
	for _, sl := range lines {
		if !sl.IsConversionCandidate() {
			continue
		}
		key := keyOf(sl)
		if _, ok := converted[key]; ok {
			continue
		}
		if _, ok := skipped[skipKey{key: key, ipv6: sl.IsIPv6}]; ok {
			continue
		}
		if sl.IsIPv6 {
			if _, ok := v4[key]; ok {
				continue
			}
			out = append(out, candidate{line: sl})
			continue
		}
		_, twin := v6[key]
		out = append(out, candidate{line: sl, twin: twin})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].line.RuleNumber > out[j].line.RuleNumber })
	return out
}

func replacementSpec(c candidate, proto string) RuleSpec {
	spec := RuleSpec{
		Action:   c.line.Action,
		Port:     c.line.To,
		Protocol: proto,
		Source:   c.line.SourceAddress(),
		Comment:  c.line.Comment,
		Family:   rule.FamilyIPv4,
	}
	switch {
	case c.twin:
		spec.Family = rule.FamilyBoth
	case c.line.IsIPv6:
		spec.Family = rule.FamilyIPv6
	}
	return spec
}
