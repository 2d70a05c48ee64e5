package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"kolibri-v0/internal/config"
	"kolibri-v0/internal/httpapi"
	"kolibri-v0/internal/node"
)

func repl(rt *node.Runtime, opts config.Options) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the runtime is single-owner: HTTP requests and the command loop
	// take the same lock, so the runtime itself stays lock-free
	var mu sync.Mutex

	if opts.HTTPAddr != "" {
		srv := httpapi.New(opts.HTTPAddr)
		srv.Status = func() any {
			mu.Lock()
			defer mu.Unlock()
			return rt.Status()
		}
		srv.Teach = func(x, y int) error {
			mu.Lock()
			defer mu.Unlock()
			return rt.Teach(x, y)
		}
		srv.TeachText = func(q, a string) error {
			mu.Lock()
			defer mu.Unlock()
			return rt.TeachText(q, a)
		}
		srv.Ask = func(x int) (int, error) {
			mu.Lock()
			defer mu.Unlock()
			return rt.Ask(x)
		}
		srv.AskText = func(q string) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			return rt.AskText(q)
		}
		srv.Evolve = func(n int) {
			mu.Lock()
			defer mu.Unlock()
			rt.Evolve(n)
		}
		srv.Feedback = func(d float64) error {
			mu.Lock()
			defer mu.Unlock()
			return rt.Feedback(d)
		}
		go func() {
			if err := srv.Run(ctx); err != nil {
				fmt.Println("ERR: http:", err)
			}
		}()
		fmt.Println("HTTP API on", opts.HTTPAddr)
	}

	fmt.Printf("Kolibri node %d online.\n", rt.NodeID())
	fmt.Println("Commands: /teach <x> <y> | /teach-text <q> = <a> | /ask <x> | /ask-text <q> | /evolve [n] | /feedback <up|down> | /status | /sync <host> <port> | /quit")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	for {
		// service one pending peer conversation without blocking input
		mu.Lock()
		_, perr := rt.PollPeers(0)
		mu.Unlock()
		if perr != nil {
			fmt.Println("ERR:", perr)
		}

		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "quit" || line == "exit" {
			return nil
		}

		fields := strings.Fields(line)
		mu.Lock()
		handleCommand(rt, fields[0], fields[1:])
		mu.Unlock()
	}
}

func handleCommand(rt *node.Runtime, cmd string, args []string) {
	switch cmd {
	case "/teach":
		if len(args) != 2 {
			fmt.Println("Use: /teach <x> <y>")
			return
		}
		x, errX := strconv.Atoi(args[0])
		y, errY := strconv.Atoi(args[1])
		if errX != nil || errY != nil {
			fmt.Println("Use: /teach <x> <y>")
			return
		}
		if err := rt.Teach(x, y); err != nil {
			fmt.Println("ERR:", err)
			return
		}
		fmt.Printf("learned f(%d) = %d\n", x, y)

	case "/teach-text":
		q, a, ok := splitPair(strings.Join(args, " "))
		if !ok {
			fmt.Println("Use: /teach-text <question> = <answer>")
			return
		}
		if err := rt.TeachText(q, a); err != nil {
			fmt.Println("ERR:", err)
			return
		}
		fmt.Printf("learned %q = %q\n", q, a)

	case "/ask":
		if len(args) != 1 {
			fmt.Println("Use: /ask <x>")
			return
		}
		x, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Println("Use: /ask <x>")
			return
		}
		answer, err := rt.Ask(x)
		if err != nil {
			fmt.Println("ERR:", err)
			return
		}
		fmt.Printf("f(%d) = %d\n", x, answer)
		fmt.Println("Rate it with: /feedback up | /feedback down")

	case "/ask-text":
		if len(args) == 0 {
			fmt.Println("Use: /ask-text <question>")
			return
		}
		answer, err := rt.AskText(strings.Join(args, " "))
		if err != nil {
			fmt.Println("ERR:", err)
			return
		}
		fmt.Println(answer)
		fmt.Println("Rate it with: /feedback up | /feedback down")

	case "/evolve":
		generations := 1
		if len(args) == 1 {
			if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
				generations = n
			}
		}
		rt.Evolve(generations)
		fmt.Printf("ran %d generations, best: %s\n", generations, rt.Status().BestFormula)

	case "/feedback":
		delta := 0.0
		switch strings.Join(args, "") {
		case "up":
			delta = 0.5
		case "down":
			delta = -0.5
		default:
			fmt.Println("Use: /feedback up | /feedback down")
			return
		}
		if err := rt.Feedback(delta); err != nil {
			fmt.Println("ERR:", err)
			return
		}
		fmt.Println("noted.")

	case "/status":
		snap := rt.Status()
		fmt.Printf("node %d session %s\n", snap.NodeID, snap.Session)
		fmt.Printf("best: %s\n", snap.BestFormula)
		fmt.Printf("examples %d, associations %d, ledger records %d\n",
			snap.Examples, snap.Associations, snap.LedgerIndex)

	case "/sync":
		if len(args) != 2 {
			fmt.Println("Use: /sync <host> <port>")
			return
		}
		port, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			fmt.Println("Use: /sync <host> <port>")
			return
		}
		if err := rt.SharePeer(args[0], uint16(port)); err != nil {
			fmt.Println("ERR:", err)
			return
		}
		fmt.Println("shared best formula.")

	default:
		fmt.Println("Unknown command:", cmd)
	}
}

// splitPair parses "question = answer".
func splitPair(s string) (string, string, bool) {
	q, a, found := strings.Cut(s, "=")
	q = strings.TrimSpace(q)
	a = strings.TrimSpace(a)
	if !found || q == "" || a == "" {
		return "", "", false
	}
	return q, a, true
}
