// Package console runs the interactive operator menu. Menu entries live in a
// command table keyed by number; every entry reads one block-pinned vault
// state and hands it to the ops pipeline.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/term"

	"vaultScope/internal/contracts"
	"vaultScope/internal/ops"
)

// CommandID is a menu number.
type CommandID int

const (
	CmdExit CommandID = iota
	CmdSnapshot
	CmdQueueStatus
	CmdQueueWithdrawal
	CmdCancelWithdrawal
	CmdRedeem
	CmdDeposit
	CmdRebalance
)

// Handler runs one menu entry.
type Handler func(ctx context.Context, c *Console) error

// Command is one row of the menu.
type Command struct {
	Title string
	Run   Handler
}

// Backend loads the vault state every command starts from. LoadState must
// read everything at one block.
type Backend interface {
	ops.SharePreviewer
	LoadState(ctx context.Context) (contracts.VaultState, error)
}

// QuoteFunc builds the valuation input for state. It must not read the chain
// again so prices and balances stay on one block.
type QuoteFunc func(ctx context.Context, state contracts.VaultState, now time.Time) (ops.ValuationInput, error)

// RecordFunc exports a command result, for example as a JSON line.
type RecordFunc func(kind string, result interface{}) error

// Options configures a Console.
type Options struct {
	Vault     common.Address
	Quotes    QuoteFunc
	Rebalance ops.RebalanceRequest
	Record    RecordFunc
	// Prompt prints the menu and input prompts. Turn it off when stdin is
	// not a terminal so scripted input gives clean output.
	Prompt bool
	Now    func() time.Time
	Logger *zap.Logger
}

// Console is a numbered menu over a Backend.
type Console struct {
	in       *bufio.Reader
	out      io.Writer
	backend  Backend
	opts     Options
	commands map[CommandID]Command
	logger   *zap.Logger
}

// New builds a Console with the default command table.
func New(in io.Reader, out io.Writer, backend Backend, opts Options) (*Console, error) {
	if backend == nil {
		return nil, fmt.Errorf("console backend is nil")
	}
	if opts.Vault == (common.Address{}) {
		return nil, fmt.Errorf("vault address is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		in:       bufio.NewReader(in),
		out:      out,
		backend:  backend,
		opts:     opts,
		commands: DefaultCommands(),
		logger:   logger,
	}, nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// DefaultCommands returns the standard menu.
func DefaultCommands() map[CommandID]Command {
	return map[CommandID]Command{
		CmdSnapshot:         {Title: "Vault snapshot", Run: runSnapshot},
		CmdQueueStatus:      {Title: "Withdrawal queue status", Run: runQueueStatus},
		CmdQueueWithdrawal:  {Title: "Queue withdrawal", Run: runQueueWithdrawal},
		CmdCancelWithdrawal: {Title: "Cancel queued withdrawal", Run: runCancel},
		CmdRedeem:           {Title: "Redeem closed round", Run: runRedeem},
		CmdDeposit:          {Title: "Plan deposit", Run: runDeposit},
		CmdRebalance:        {Title: "Propose rebalance", Run: runRebalance},
	}
}

// Register adds or replaces a menu entry.
func (c *Console) Register(id CommandID, cmd Command) {
	c.commands[id] = cmd
}

// Run shows the menu until the user exits, input ends or ctx is done. A
// failing command is reported and the menu continues.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.opts.Prompt {
			c.printMenu()
		}
		line, err := c.ask("Select")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		if line == "q" || line == "quit" || line == "exit" {
			return nil
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprintf(c.out, "unknown option %q\n", line)
			continue
		}
		id := CommandID(n)
		if id == CmdExit {
			return nil
		}
		cmd, ok := c.commands[id]
		if !ok {
			fmt.Fprintf(c.out, "unknown option %d\n", n)
			continue
		}
		if err := cmd.Run(ctx, c); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			c.logger.Debug("command failed", zap.String("command", cmd.Title), zap.Error(err))
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}

func (c *Console) printMenu() {
	ids := make([]int, 0, len(c.commands))
	for id := range c.commands {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	fmt.Fprintln(c.out)
	for _, id := range ids {
		fmt.Fprintf(c.out, "%d) %s\n", id, c.commands[CommandID(id)].Title)
	}
	fmt.Fprintln(c.out, "0) Exit")
}

// ask prompts for one line. It returns io.EOF once input is exhausted.
func (c *Console) ask(label string) (string, error) {
	if c.opts.Prompt {
		fmt.Fprintf(c.out, "%s: ", label)
	}
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *Console) askUint(label string) (uint64, error) {
	line, err := c.ask(label)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(line, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", strings.ToLower(label), line)
	}
	return v, nil
}

func (c *Console) record(kind string, result interface{}) error {
	if c.opts.Record == nil {
		return nil
	}
	if err := c.opts.Record(kind, result); err != nil {
		return fmt.Errorf("export %s: %w", kind, err)
	}
	return nil
}
