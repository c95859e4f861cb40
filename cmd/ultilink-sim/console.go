package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/ultilink/ultilink-go/pkg/guard"
	"github.com/ultilink/ultilink-go/pkg/safety"
)

// console is the interactive command loop.
type console struct {
	g        *guard.Guard
	device   *simDevice
	provider safety.Provider
	rl       *readline.Instance
}

func newConsole(g *guard.Guard, device *simDevice, provider safety.Provider) (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ultilink> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &console{g: g, device: device, provider: provider, rl: rl}, nil
}

func (c *console) run() {
	defer c.rl.Close()

	c.printHelp()

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "info":
			c.call(guard.Descriptor{
				Key:      guard.RESTKey("GET", "/v1/info"),
				Intent:   c.intent(args),
				Category: guard.CategoryInfo,
			}, c.device.info)

		case "configs":
			c.call(guard.Descriptor{
				Key:      guard.RESTKey("GET", "/v1/configs"),
				Intent:   c.intent(args),
				Category: guard.CategoryConfigs,
			}, c.device.configs)

		case "drives":
			c.call(guard.Descriptor{
				Key:      guard.RESTKey("GET", "/v1/drives"),
				Intent:   c.intent(args),
				Category: guard.CategoryDrives,
			}, c.device.drives)

		case "ftpls":
			c.cmdFTPList(args)

		case "burst":
			c.cmdBurst(args)

		case "fail":
			c.cmdFail(args)

		case "state":
			c.cmdState()

		case "profile":
			c.cmdProfile(args)

		case "reset":
			c.g.Reset("console")
			fmt.Fprintln(c.rl.Stdout(), "Interaction state cleared.")

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

// intent reads an optional trailing intent argument, defaulting to user so
// console commands behave like UI actions.
func (c *console) intent(args []string) guard.Intent {
	if len(args) == 0 {
		return guard.IntentUser
	}
	switch strings.ToLower(args[len(args)-1]) {
	case "system":
		return guard.IntentSystem
	case "background", "bg":
		return guard.IntentBackground
	default:
		return guard.IntentUser
	}
}

func (c *console) call(desc guard.Descriptor, exec guard.Executor) {
	start := time.Now()
	v, err := c.g.Interact(context.Background(), desc, exec)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "FAIL  %s after %v: %v\n", desc.Key, elapsed, err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "OK    %s after %v: %v\n", desc.Key, elapsed, v)
}

func (c *console) cmdFTPList(args []string) {
	path := "/Usb0"
	if len(args) > 0 {
		path = args[0]
	}
	start := time.Now()
	v, err := c.g.InteractFTP(context.Background(), "LIST", path, guard.IntentUser,
		func(ctx context.Context) (any, error) {
			return c.device.ftpList(ctx, path)
		})
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "FAIL  FTP LIST %s after %v: %v\n", path, elapsed, err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "OK    FTP LIST %s after %v: %v\n", path, elapsed, v)
}

// cmdBurst fires N identical info calls concurrently to demonstrate
// coalescing: however large the burst, the device sees one call.
func (c *console) cmdBurst(args []string) {
	n := 5
	if len(args) > 0 {
		if parsed, err := strconv.Atoi(args[0]); err == nil && parsed > 0 {
			n = parsed
		}
	}

	desc := guard.Descriptor{
		Key:      guard.RESTKey("GET", "/v1/info"),
		Intent:   guard.IntentUser,
		Category: guard.CategoryInfo,
	}

	before, _ := c.device.stats()
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := c.g.Interact(context.Background(), desc, c.device.info)
			done <- err
		}()
	}
	var failed int
	for i := 0; i < n; i++ {
		if <-done != nil {
			failed++
		}
	}
	after, _ := c.device.stats()
	fmt.Fprintf(c.rl.Stdout(), "Burst of %d: %d failed, device saw %d physical call(s)\n",
		n, failed, after-before)
}

func (c *console) cmdFail(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: fail <rate 0..1>")
		return
	}
	rate, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid rate: %v\n", err)
		return
	}
	c.device.setFailRate(rate)
	fmt.Fprintf(c.rl.Stdout(), "Failure rate set to %.0f%%\n", rate*100)
}

func (c *console) cmdState() {
	snap := c.g.State().Snapshot()
	calls, failures := c.device.stats()

	out := c.rl.Stdout()
	fmt.Fprintf(out, "Device state:   %s (busy %d)\n", snap.State, snap.BusyCount)
	if snap.LastErrorMessage != "" {
		fmt.Fprintf(out, "Last error:     %s\n", snap.LastErrorMessage)
	}
	if !snap.LastSuccess.IsZero() {
		fmt.Fprintf(out, "Last success:   %s ago\n", time.Since(snap.LastSuccess).Round(time.Millisecond))
	}
	if snap.CircuitOpen(time.Now()) {
		fmt.Fprintf(out, "Circuit:        OPEN for another %s\n",
			time.Until(snap.CircuitOpenUntil).Round(time.Millisecond))
	} else {
		fmt.Fprintln(out, "Circuit:        closed")
	}
	fmt.Fprintf(out, "Simulator:      %d call(s), %d failure(s)\n", calls, failures)
}

func (c *console) cmdProfile(args []string) {
	static, ok := c.provider.(*safety.StaticProvider)
	if !ok {
		fmt.Fprintln(c.rl.Stdout(), "Profile switching requires -profile mode (config file active).")
		return
	}
	if len(args) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: profile <relaxed|balanced|conservative|troubleshooting>")
		return
	}
	profile, err := safety.ProfileByName(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	static.Set(safety.Profiles[profile])
	fmt.Fprintf(c.rl.Stdout(), "Active profile: %s\n", profile)
}

func (c *console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Ultilink Guard Simulator:
  Calls (optional trailing intent: user, system, background):
    info               - GET /v1/info        (cached: info TTL)
    configs            - GET /v1/configs     (cached + cooldown)
    drives             - GET /v1/drives      (cooldown only)
    ftpls [path]       - FTP LIST            (ftp-list cooldown)
    burst [n]          - n concurrent info calls (coalescing demo)

  Device control:
    fail <rate>        - Set simulated failure rate (0..1)
    state              - Show health snapshot and simulator stats
    profile <name>     - Switch the active safety profile
    reset              - Clear interaction state (reconnect)

  quit                 - Exit`)
}
