/*
Package rollkit parses, evaluates and replays tabletop dice formulas such as
"4d6kh3", "{2d20,1d12}kh1 + 3" or "8d10x cs>=8".

The parsing and evaluation core lives in pkg/dice and has no I/O. This package
wraps it in an [Engine] that binds a modifier registry, a random source,
lifecycle hooks, a structured logger and OpenTelemetry spans, so hosts (CLI,
HTTP server, MCP server) roll with a single call.

# Concept

A formula becomes a flat list of terms: numbers, operators, dice, pools and
parenthesised sub-rolls. Evaluation draws every die from a [random.Source],
applies the modifiers attached to each dice or pool term, and folds the
arithmetic into a total. The evaluated tree serializes to JSON and back
without loss, which is what makes a roll auditable: [Engine.Replay] restores
exactly what was rolled.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/rollkit"
		"github.com/aretw0/rollkit/pkg/dice"
	)

	func main() {
		eng, err := rollkit.New()
		if err != nil {
			log.Fatal(err)
		}

		r, err := eng.Roll(context.Background(), "4d6kh3 + 2", dice.ModeRandom)
		if err != nil {
			log.Fatal(err)
		}

		total, _ := r.Total()
		fmt.Println(r.Expression(), "=", total)
	}
*/
package rollkit
