// MFP  - Miulti-Function Printers and scanners toolkit
// argv - Argv parsing mini-library
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Argv parser

package argv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Option describes a single command option (a "flag").
type Option struct {
	Name      string                            // Canonical name, e.g. "-x" or "--long"
	Aliases   []string                          // Alternative names
	Help      string                            // Help string
	HelpArg   string                            // Name of option's argument, for help
	Validate  func(string) (string, error)      // Value validator, nil for boolean flags
	Conflicts []string                          // Names of options this one conflicts with
	Requires  []string                          // Names of options this one requires
	Singleton bool                              // Option cannot be repeated
	Required  bool                              // Option is mandatory
}

// names returns all names (canonical + aliases) of the Option.
func (opt *Option) names() []string {
	return append([]string{opt.Name}, opt.Aliases...)
}

// hasName reports if name matches Option's canonical name or any alias.
func (opt *Option) hasName(name string) bool {
	for _, n := range opt.names() {
		if n == name {
			return true
		}
	}
	return false
}

// Parameter describes a single positional parameter.
//
// Name may be wrapped into square brackets to indicate that the
// parameter is optional ("[name]") and/or suffixed with "..." to
// indicate that the parameter consumes one or more (or, if optional,
// zero or more) trailing command-line words ("name...", "[name...]").
type Parameter struct {
	Name     string                       // Parameter name/syntax
	Help     string                       // Help string
	Validate func(string) (string, error) // Value validator
}

// baseName returns the Parameter's bare name, with decorations
// ("[...]", "...") stripped.
func (p *Parameter) baseName() string {
	name := p.Name
	name = strings.TrimPrefix(name, "[")
	name = strings.TrimSuffix(name, "]")
	name = strings.TrimSuffix(name, "...")
	return name
}

// optional reports if the Parameter is optional.
func (p *Parameter) optional() bool {
	return strings.HasPrefix(p.Name, "[") && strings.HasSuffix(p.Name, "]")
}

// greedy reports if the Parameter consumes multiple words.
func (p *Parameter) greedy() bool {
	name := p.Name
	name = strings.TrimSuffix(name, "]")
	return strings.HasSuffix(name, "...")
}

// Command describes a command (or sub-command).
type Command struct {
	Name                     string             // Command name
	Help                     string             // One-line help
	Description              string             // Long description
	NoOptionsAfterParameters bool               // Disable options after the 1st parameter
	Options                  []Option           // Command options
	Parameters               []Parameter        // Positional parameters
	SubCommands              []Command          // Sub-commands
	Handler                  func(context.Context, *Invocation) error
}

// HelpOption is the standard "-h"/"--help" option, ready for
// inclusion into the Command.Options slice.
var HelpOption = Option{
	Name:    "-h",
	Aliases: []string{"--help"},
	Help:    "Print help page and exit",
}

// ValidateAny accepts any value unchanged.
func ValidateAny(s string) (string, error) {
	return s, nil
}

// ValidateInt32 validates that the value is a valid 32-bit integer.
func ValidateInt32(s string) (string, error) {
	_, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return "", errors.New("invalid integer")
	}
	return s, nil
}

// ValidateUint16 validates that the value is a valid unsigned
// 16-bit integer (e.g., a TCP/UDP port number).
func ValidateUint16(s string) (string, error) {
	_, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return "", errors.New("invalid port number")
	}
	return s, nil
}

// Invocation represents a parsed command invocation.
type Invocation struct {
	cmd     *Command
	byName  map[string][]string // Options and parameters, by name
	params  []string            // Positional parameter words, in order
	subcmd  *Command            // Matched sub-command, if any
	subargv []string            // Sub-command's raw argv
}

// Get returns the first value of the named option or parameter
// and true, or ("", false) if it is not present.
func (inv *Invocation) Get(name string) (string, bool) {
	v := inv.byName[name]
	if len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// Values returns all values of the named option or parameter.
func (inv *Invocation) Values(name string) []string {
	return inv.byName[name]
}

// SubCommand returns the matched sub-command's name and its raw
// argv, or ("", nil) if the Command has no sub-commands or none
// was given.
func (inv *Invocation) SubCommand() (string, []string) {
	if inv.subcmd == nil {
		return "", nil
	}
	return inv.subcmd.Name, inv.subargv
}

// ParamCount returns a count of positional parameter words.
func (inv *Invocation) ParamCount() int {
	return len(inv.params)
}

// ParamGet returns the n-th positional parameter word.
func (inv *Invocation) ParamGet(n int) string {
	return inv.params[n]
}

// Parse parses the argv (not including the program name) according
// to the Command description.
func (cmd *Command) Parse(argv []string) (*Invocation, error) {
	p := newParser(cmd, argv)
	return p.parse()
}

// parser holds the state of the in-progress parse.
type parser struct {
	cmd       *Command
	argv      []string
	byName    map[string][]string
	seenOpt   []*Option // Options seen, in order
	positional []string
}

// newParser creates a new parser.
func newParser(cmd *Command, argv []string) *parser {
	if cmd.Name == "" {
		panic(errors.New("missed command name"))
	}

	return &parser{
		cmd:    cmd,
		argv:   argv,
		byName: make(map[string][]string),
	}
}

// parse performs the parsing.
func (p *parser) parse() (*Invocation, error) {
	inv := &Invocation{cmd: p.cmd}

	terminated := false
	sawPositional := false

	i := 0
	for i < len(p.argv) {
		tok := p.argv[i]

		if !terminated && tok == "--" {
			terminated = true
			i++
			continue
		}

		isOption := !terminated && len(tok) > 1 && tok[0] == '-'
		if isOption && p.cmd.NoOptionsAfterParameters && sawPositional {
			isOption = false
		}

		if isOption {
			consumed, err := p.parseOption(p.argv, i)
			if err != nil {
				return nil, err
			}
			i += consumed
			continue
		}

		// Positional token.
		if len(p.cmd.SubCommands) > 0 && len(p.cmd.Parameters) == 0 {
			sub, err := p.matchSubCommand(tok)
			if err != nil {
				return nil, err
			}
			inv.subcmd = sub
			inv.subargv = append([]string{}, p.argv[i+1:]...)
			i = len(p.argv)
			break
		}

		p.positional = append(p.positional, tok)
		sawPositional = true
		i++
	}

	if err := p.finishOptions(); err != nil {
		return nil, err
	}

	if inv.subcmd == nil && len(p.cmd.SubCommands) > 0 {
		return nil, errors.New("missed sub-command name")
	}

	if inv.subcmd == nil {
		if err := p.distributeParameters(); err != nil {
			return nil, err
		}
	}

	inv.byName = p.byName
	inv.params = p.positional
	if inv.params == nil {
		inv.params = []string{}
	}

	return inv, nil
}

// matchSubCommand matches name against the Command's SubCommands,
// by exact name or by unique prefix.
func (p *parser) matchSubCommand(name string) (*Command, error) {
	for i := range p.cmd.SubCommands {
		if p.cmd.SubCommands[i].Name == name {
			return &p.cmd.SubCommands[i], nil
		}
	}

	var matches []*Command
	for i := range p.cmd.SubCommands {
		if strings.HasPrefix(p.cmd.SubCommands[i].Name, name) {
			matches = append(matches, &p.cmd.SubCommands[i])
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("unknown sub-command: %q", name)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous sub-command: %q", name)
	}
}

// findOption finds the Option by its name (canonical or alias).
func (p *parser) findOption(name string) *Option {
	for i := range p.cmd.Options {
		if p.cmd.Options[i].hasName(name) {
			return &p.cmd.Options[i]
		}
	}
	return nil
}

// parseOption parses a single option occurrence, starting at argv[i].
// It returns a number of argv words consumed.
func (p *parser) parseOption(argv []string, i int) (int, error) {
	tok := argv[i]

	if strings.HasPrefix(tok, "--") {
		name := tok
		inlineValue := ""
		hasInline := false

		if idx := strings.IndexByte(tok, '='); idx >= 0 {
			name = tok[:idx]
			inlineValue = tok[idx+1:]
			hasInline = true
		}

		opt := p.findOption(name)
		if opt == nil {
			return 0, fmt.Errorf("unknown option: %q", name)
		}

		consumed := 1
		value := ""
		if opt.Validate != nil {
			var raw string
			if hasInline {
				raw = inlineValue
			} else if i+1 < len(argv) {
				raw = argv[i+1]
				consumed = 2
			} else {
				return 0, fmt.Errorf("option requires operand: %q", name)
			}

			v, err := opt.Validate(raw)
			if err != nil {
				return 0, fmt.Errorf("%s: %s %q", err, name, raw)
			}
			value = v
		}

		if err := p.recordOption(opt, value); err != nil {
			return 0, err
		}

		return consumed, nil
	}

	// Short option (cluster): "-abc", "-v456", "-n" "123"
	chars := tok[1:]
	consumedExtra := 0

	for pos := 0; pos < len(chars); pos++ {
		name := "-" + string(chars[pos])
		opt := p.findOption(name)
		if opt == nil {
			return 0, fmt.Errorf("unknown option: %q", name)
		}

		if opt.Validate == nil {
			if err := p.recordOption(opt, ""); err != nil {
				return 0, err
			}
			continue
		}

		var raw string
		if pos == 0 && pos+1 < len(chars) {
			raw = chars[pos+1:]
			pos = len(chars) // stop the cluster loop
		} else if i+1+consumedExtra < len(argv) {
			consumedExtra++
			raw = argv[i+consumedExtra]
		} else {
			return 0, fmt.Errorf("option requires operand: %q", name)
		}

		v, err := opt.Validate(raw)
		if err != nil {
			return 0, fmt.Errorf("%s: %s %q", err, name, raw)
		}

		if err := p.recordOption(opt, v); err != nil {
			return 0, err
		}
	}

	return 1 + consumedExtra, nil
}

// recordOption records an occurrence of the option with the given
// (already-validated) value, checking Singleton/Conflicts rules.
func (p *parser) recordOption(opt *Option, value string) error {
	if opt.Singleton {
		if _, ok := p.byName[opt.Name]; ok {
			return fmt.Errorf("option %q cannot be repeated", opt.Name)
		}
	}

	for _, prev := range p.seenOpt {
		for _, c := range prev.Conflicts {
			if opt.hasName(c) {
				return fmt.Errorf("option %q conflicts with %q",
					opt.Name, prev.Name)
			}
		}
		for _, c := range opt.Conflicts {
			if prev.hasName(c) {
				return fmt.Errorf("option %q conflicts with %q",
					opt.Name, prev.Name)
			}
		}
	}

	for _, n := range opt.names() {
		p.byName[n] = append(p.byName[n], value)
	}

	p.seenOpt = append(p.seenOpt, opt)
	return nil
}

// finishOptions performs the post-parse validation of options:
// Required and Requires.
func (p *parser) finishOptions() error {
	seen := func(name string) bool {
		_, ok := p.byName[name]
		return ok
	}

	for i := range p.cmd.Options {
		opt := &p.cmd.Options[i]
		if opt.Required && !seen(opt.Name) {
			return fmt.Errorf("missed option %q", opt.Name)
		}
	}

	for _, opt := range p.seenOpt {
		for _, req := range opt.Requires {
			if !seen(req) {
				return fmt.Errorf("missed option %q, required by %q",
					req, opt.Name)
			}
		}
	}

	return nil
}

// distributeParameters distributes the collected positional words
// across the Command's declared Parameters.
func (p *parser) distributeParameters() error {
	words := p.positional
	n := len(words)
	idx := 0

	params := p.cmd.Parameters
	for i := range params {
		param := &params[i]

		minAfter := 0
		for _, next := range params[i+1:] {
			if !next.optional() {
				minAfter++
			}
		}

		if param.greedy() {
			take := n - idx - minAfter
			if take < 0 {
				take = 0
			}

			if !param.optional() && take < 1 {
				return fmt.Errorf("missed parameter: %q", param.baseName())
			}

			values := append([]string{}, words[idx:idx+take]...)
			if param.Validate != nil {
				for j, v := range values {
					nv, err := param.Validate(v)
					if err != nil {
						return fmt.Errorf("%q: %s %q",
							param.baseName(), err, v)
					}
					values[j] = nv
				}
			}

			p.byName[param.baseName()] = values
			idx += take
			continue
		}

		if idx >= n {
			if param.optional() {
				continue
			}
			return fmt.Errorf("missed parameter: %q", param.baseName())
		}

		value := words[idx]
		if param.Validate != nil {
			nv, err := param.Validate(value)
			if err != nil {
				return fmt.Errorf("%q: %s %q", param.baseName(), err, value)
			}
			value = nv
		}

		p.byName[param.baseName()] = []string{value}
		idx++
	}

	if idx < n {
		return fmt.Errorf("unexpected parameter: %q", words[idx])
	}

	return nil
}
