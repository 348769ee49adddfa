package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	claude "github.com/haowjy/meridian-claude-go"
)

func cmdModels(ctx context.Context, cmd *cli.Command) error {
	out := newPrinter(writer(cmd))
	registry := claude.GetCapabilityRegistry()

	var rows [][]string
	for _, id := range registry.Models() {
		m, err := registry.GetModelCapability(id)
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			id,
			m.DisplayName,
			strconv.Itoa(m.ContextWindow),
			strconv.Itoa(m.MaxOutputTokens),
			yesNo(m.Features.Thinking),
			yesNo(m.Features.Batch),
			fmt.Sprintf("$%.2f / $%.2f", m.Pricing.InputPer1M, m.Pricing.OutputPer1M),
		})
	}
	out.Table([]string{"Model", "Name", "Context", "Max output", "Thinking", "Batch", "Price in/out per 1M"}, rows)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
