package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/hud/internal/geo"
	"github.com/OCAP2/hud/internal/util"
	"github.com/OCAP2/hud/pkg/core"
)

// ErrArgCount is returned when a command carries too few arguments.
var ErrArgCount = errors.New("wrong number of arguments")

// wholeNumber parses s as an integer in [lo, hi]. Hosts that only have a
// float type send "12.00", so float spellings without a fraction pass.
func wholeNumber(name, s string, lo, hi float64) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("error converting %s: %w", name, err)
	}
	if f != math.Trunc(f) || f < lo || f > hi {
		return 0, fmt.Errorf("%s %q is not a whole number in [%g, %g]", name, s, lo, hi)
	}
	return int64(f), nil
}

func parseEntityID(s string) (core.EntityID, error) {
	v, err := wholeNumber("entity id", s, 0, math.MaxUint16)
	return core.EntityID(v), err
}

func parseFloat(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("error converting %s to float: %q", name, s)
	}
	return v, nil
}

func parseBool(name, s string) (bool, error) {
	v, err := strconv.ParseBool(strings.ToLower(s))
	if err != nil {
		return false, fmt.Errorf("error converting %s to bool: %w", name, err)
	}
	return v, nil
}

func parsePosition(name, s string) (core.Position3D, error) {
	pos, err := geo.Position3DFromString(util.TrimBrackets(s))
	if err != nil {
		return pos, fmt.Errorf("error converting %s %q: %w", name, s, err)
	}
	return pos, nil
}

func parseCaps(onScreen, offScreen, arrow string) (core.Capabilities, error) {
	var c core.Capabilities
	var err error
	if c.OnScreen, err = parseBool("onScreen", onScreen); err != nil {
		return c, err
	}
	if c.OffScreen, err = parseBool("offScreen", offScreen); err != nil {
		return c, err
	}
	if c.OffScreenArrow, err = parseBool("offScreenArrow", arrow); err != nil {
		return c, err
	}
	return c, nil
}

// Parser provides pure []string -> command struct conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{logger: logger}
}

// prepare cleans data in place and checks it has at least n elements.
func (p *Parser) prepare(command string, data []string, n int) ([]string, error) {
	if len(data) < n {
		return nil, fmt.Errorf("%s: %w: want %d, got %d", command, ErrArgCount, n, len(data))
	}
	return util.CleanArgs(data), nil
}
