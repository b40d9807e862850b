package bf

// Command is a single brainfuck instruction byte.
type Command byte

const (
	Increment Command = '+'
	Decrement Command = '-'
	Left      Command = '<'
	Right     Command = '>'
	Output    Command = '.'
	Input     Command = ','
	LoopStart Command = '['
	LoopEnd   Command = ']'
	Ignore    Command = ' '
)

// Decode maps a byte of program text to its command. Everything which is not
// one of the eight instructions is a comment.
func Decode(c byte) Command {
	switch Command(c) {
	case Increment, Decrement, Left, Right, Output, Input, LoopStart, LoopEnd:
		return Command(c)
	default:
		return Ignore
	}
}

func (c Command) String() string {
	if Decode(byte(c)) == Ignore {
		return " "
	}
	return string(rune(c))
}

// Lex returns the commands of source with all comments dropped. The
// interpreter does not use it; it works on the raw text.
func Lex(source string) []Command {
	commands := []Command{}
	for j := 0; j < len(source); j++ {
		cmd := Decode(source[j])
		if cmd != Ignore {
			commands = append(commands, cmd)
		}
	}
	return commands
}

// Strip removes every non-instruction character from source.
func Strip(source string) string {
	commands := Lex(source)
	result := make([]byte, len(commands))
	for j, c := range commands {
		result[j] = byte(c)
	}
	return string(result)
}
