package worker

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/OCAP2/hud/internal/util"
)

// CommandSeparator splits a script line into command and arguments.
const CommandSeparator = "|"

// Step is one scripted command, dispatched before frame Frame is laid out.
type Step struct {
	Frame   uint64
	Line    int
	Command string
	Args    []string
}

// Script is a sequence of steps ordered by frame.
type Script []Step

// LoadScript reads commands, one per line:
//
//	:ENTITY:SPAWN:|1|0,0,10|true
//	@30
//	:ENTITY:MOVE:|1|5,0,10
//
// A line "@N" makes the following commands run at frame N; frames may not
// go backwards. Blank lines and '#' comments are skipped.
func LoadScript(r io.Reader) (Script, error) {
	var (
		script Script
		frame  uint64
		lineNo int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if rest, ok := strings.CutPrefix(line, "@"); ok {
			n, err := strconv.ParseUint(strings.TrimSpace(rest), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad frame marker %q: %w", lineNo, line, err)
			}
			if n < frame {
				return nil, fmt.Errorf("line %d: frame %d before %d", lineNo, n, frame)
			}
			frame = n
			continue
		}
		cmd, args, ok := util.SplitCommand(line, CommandSeparator)
		if !ok {
			continue
		}
		script = append(script, Step{Frame: frame, Line: lineNo, Command: cmd, Args: args})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return script, nil
}

// LastFrame returns the frame of the final step.
func (s Script) LastFrame() uint64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Frame
}
