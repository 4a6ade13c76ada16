package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/felixgeelhaar/ragchat/internal/store"
)

type OutcomeKind string

const (
	KindContinue           OutcomeKind = "continue"
	KindQuit               OutcomeKind = "quit"
	KindRedraw             OutcomeKind = "redraw"
	KindHelp               OutcomeKind = "help"
	KindBack               OutcomeKind = "back"
	KindNew                OutcomeKind = "new"
	KindPromptUpdated      OutcomeKind = "prompt_updated"
	KindTopNSet            OutcomeKind = "top_n_set"
	KindInvalidTopN        OutcomeKind = "invalid_top_n"
	KindTemperatureSet     OutcomeKind = "temperature_set"
	KindInvalidTemperature OutcomeKind = "invalid_temperature"
	KindNoResults          OutcomeKind = "no_results"
	KindFoundDocuments     OutcomeKind = "found_documents"
	KindPass               OutcomeKind = "pass"
	KindError              OutcomeKind = "error"
)

// Outcome tells the front end what a line of input did.
type Outcome struct {
	Kind    OutcomeKind
	Message string
	Results []store.Result
	Reply   *Reply
	Err     error
}

// Handle interprets one line of user input. Validation failures and backend
// errors are reported in the Outcome; Handle itself never fails.
func (c *Controller) Handle(ctx context.Context, line string) Outcome {
	cmd := ParseCommand(line)
	switch cmd.Kind {
	case CmdEmpty:
		return Outcome{Kind: KindPass, Message: EmptyHint}
	case CmdQuit:
		return Outcome{Kind: KindQuit}
	case CmdRedraw:
		return Outcome{Kind: KindRedraw, Message: "Redrew the screen"}
	case CmdHelp:
		return Outcome{Kind: KindHelp, Message: Help}
	case CmdNew:
		c.New()
		return Outcome{Kind: KindNew, Message: "New chat started"}
	case CmdBack:
		if err := c.Back(); err != nil {
			return errorOutcome("Nothing to go back to", err)
		}
		return Outcome{Kind: KindBack, Message: "Back one turn"}
	case CmdRetry:
		reply, err := c.Retry(ctx)
		if errors.Is(err, ErrHistoryTooShort) {
			return errorOutcome("Nothing to retry", err)
		}
		return submitOutcome(reply, err)
	case CmdPrompt:
		c.SetPrompt(cmd.Arg)
		return Outcome{Kind: KindPromptUpdated, Message: "Prompt updated"}
	case CmdTopN:
		if err := c.SetTopN(cmd.Arg); err != nil {
			return Outcome{Kind: KindInvalidTopN, Message: "Invalid top N value", Err: err}
		}
		return Outcome{Kind: KindTopNSet, Message: fmt.Sprintf("Top N set to %d", c.session.TopN)}
	case CmdTemperature:
		if err := c.SetTemperature(cmd.Arg); err != nil {
			return Outcome{Kind: KindInvalidTemperature, Message: "Invalid temperature value", Err: err}
		}
		return Outcome{Kind: KindTemperatureSet, Message: "Temperature set to " + strconv.FormatFloat(c.session.Temperature, 'g', -1, 64)}
	case CmdSearch:
		results, err := c.Search(ctx, cmd.Arg)
		if err != nil {
			return errorOutcome("Search failed", err)
		}
		if len(results) == 0 {
			return Outcome{Kind: KindNoResults, Message: "No documents found"}
		}
		return Outcome{Kind: KindFoundDocuments, Results: results}
	default:
		reply, err := c.Submit(ctx, cmd.Arg)
		return submitOutcome(reply, err)
	}
}

func submitOutcome(reply *Reply, err error) Outcome {
	if err != nil {
		return errorOutcome("Generation failed, nothing was added to the history", err)
	}
	return Outcome{Kind: KindContinue, Reply: reply}
}

func errorOutcome(msg string, err error) Outcome {
	return Outcome{Kind: KindError, Message: fmt.Sprintf("%s: %v", msg, err), Err: err}
}
