package chat

import "strings"

// Help lists the interactive commands.
const Help = `Commands:
- (b)ack: Go back to the previous message
- (h)elp: Show this help message
- new: Start a new chat
- (p)rompt <message>: Update the system message
- re(d)raw: Redraw the screen
- (r)etry: Retry the previous user input
- (s)earch <query>: Search your documents
- top <n>: Set the top n results to use
- temp <n>: Set the temperature
- (q)uit/exit: End the chat
`

// EmptyHint is shown when the user submits an empty line.
const EmptyHint = "Type 'h' for help, 'q' to quit."

type CommandKind int

const (
	CmdSubmit CommandKind = iota
	CmdEmpty
	CmdQuit
	CmdRetry
	CmdBack
	CmdNew
	CmdRedraw
	CmdHelp
	CmdPrompt
	CmdTopN
	CmdTemperature
	CmdSearch
)

// Command is one parsed line of user input. Arg holds the command argument
// with its original case, or the full input for CmdSubmit.
type Command struct {
	Kind CommandKind
	Arg  string
}

var singleWord = map[string]CommandKind{
	"q":      CmdQuit,
	"quit":   CmdQuit,
	"exit":   CmdQuit,
	"r":      CmdRetry,
	"retry":  CmdRetry,
	"b":      CmdBack,
	"back":   CmdBack,
	"new":    CmdNew,
	"d":      CmdRedraw,
	"redraw": CmdRedraw,
	"h":      CmdHelp,
	"help":   CmdHelp,
}

var withArgument = map[string]CommandKind{
	"p":      CmdPrompt,
	"prompt": CmdPrompt,
	"top":    CmdTopN,
	"temp":   CmdTemperature,
	"s":      CmdSearch,
	"search": CmdSearch,
}

// ParseCommand classifies a line of input. Keywords match case-insensitively.
// A keyword that needs an argument but has none is treated as plain text.
// top and temp read only their first argument.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{Kind: CmdEmpty}
	}
	if kind, ok := singleWord[strings.ToLower(line)]; ok {
		return Command{Kind: kind}
	}

	fields := strings.Fields(line)
	if len(fields) > 1 {
		if kind, ok := withArgument[strings.ToLower(fields[0])]; ok {
			if kind == CmdTopN || kind == CmdTemperature {
				return Command{Kind: kind, Arg: fields[1]}
			}
			return Command{Kind: kind, Arg: strings.Join(fields[1:], " ")}
		}
	}
	return Command{Kind: CmdSubmit, Arg: line}
}
