/*
Package runner implements the interactive roll loop (REPL) used by the rollkit CLI.

It reads one line at a time from an IOHandler, evaluates it as a formula or a
colon command, and writes the outcome back through the same handler.

# Key Components

  - Runner: The loop. Holds the current mode and channel.
  - IOHandler: Decouples how lines are read and entries written.
  - TextHandler: Human-readable output for terminals.
  - JSONHandler: One JSON object per line for scripts and bots.

# Commands

	4d6kh3 + 2        roll a formula
	@fireball         roll a macro
	:mode max         random, min or max
	:channel table-1  record later rolls on a channel (":channel" alone stops)
	:history          list the channel's rolls
	:replay <id>      restore a recorded roll and verify its total
	:macros           list macros
	:help, :quit

# Usage

	r := runner.NewRunner(
		runner.WithRoller(engine),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner
