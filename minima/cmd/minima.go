// Command-line chat client over the sync layer. Talks to a running minima
// backend, falls back to the demo account when the network is down.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"minima/minima/sync/client"
	"minima/minima/sync/dispatch"
	"minima/minima/sync/model"
	"minima/minima/utils/color"
	"minima/minima/utils/logging"

	"go.uber.org/zap"
)

func main() {
	logging.InitLogger()

	cfgPath := os.Getenv("MINIMA_CLIENT_CONFIG")
	cfg := client.Config{
		BaseURL:   envOr("MINIMA_BASE_URL", "http://localhost:8000"),
		CachePath: envOr("MINIMA_CACHE_PATH", defaultCachePath()),
	}
	if cfgPath != "" {
		loaded, err := client.LoadConfig(cfgPath)
		if err != nil {
			fmt.Println(color.ColorError("config error: " + err.Error()))
			os.Exit(1)
		}
		cfg = loaded
	}

	c, err := client.New(cfg)
	if err != nil {
		fmt.Println(color.ColorError("startup error: " + err.Error()))
		os.Exit(1)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	fmt.Println(color.ColorTitle("minima"))
	if c.IsOffline() {
		fmt.Println(color.ColorWarning("backend unreachable, demo sign-in only (demo@example.com / password)"))
	}
	if id := c.CurrentIdentity(); id != nil {
		fmt.Println(color.ColorInfo("signed in as " + id.Email))
	} else {
		fmt.Println(color.ColorInfo("not signed in; use /login <email> <password> or /signup"))
	}
	fmt.Println("Type a message to chat, /help for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(color.ColorPrompt("minima> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/exit" || line == "/quit" {
			break
		}
		if strings.HasPrefix(line, "/") {
			runCommand(ctx, c, line)
			continue
		}
		sendMessage(ctx, c, line)
	}
}

func runCommand(ctx context.Context, c *client.Client, line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		fmt.Println(`  /login <email> <password>   sign in
  /signup <email> <password>  create an account
  /logout                     sign out
  /sessions                   list sessions
  /open <n>                   switch to session n from the list
  /new [title]                start a new session
  /rename <title>             rename the current session
  /delete                     delete the current session
  /whoami                     show the current identity
  /exit                       quit`)

	case "/login":
		if len(args) != 2 {
			fmt.Println(color.ColorWarning("usage: /login <email> <password>"))
			return
		}
		if err := c.SignIn(ctx, args[0], args[1]); err != nil {
			fmt.Println(color.ColorError("sign-in failed: " + err.Error()))
			return
		}
		fmt.Println(color.ColorInfo("signed in as " + c.CurrentIdentity().Email))

	case "/signup":
		if len(args) != 2 {
			fmt.Println(color.ColorWarning("usage: /signup <email> <password>"))
			return
		}
		if err := c.SignUp(ctx, args[0], args[1]); err != nil {
			fmt.Println(color.ColorError("sign-up failed: " + err.Error()))
			return
		}
		fmt.Println(color.ColorInfo("account created, signed in as " + c.CurrentIdentity().Email))

	case "/logout":
		c.SignOut(ctx)
		fmt.Println(color.ColorInfo("signed out"))

	case "/sessions":
		sessions := c.ListSessions()
		if len(sessions) == 0 {
			fmt.Println(color.ColorInfo("no sessions yet"))
			return
		}
		active := c.ActiveSessionID()
		for i, s := range sessions {
			marker := "  "
			if s.ID == active {
				marker = color.ColorInfo("* ")
			}
			fmt.Printf("%s%d. %s\n", marker, i+1, s.Title)
		}

	case "/open":
		if len(args) != 1 {
			fmt.Println(color.ColorWarning("usage: /open <n>"))
			return
		}
		n, err := strconv.Atoi(args[0])
		sessions := c.ListSessions()
		if err != nil || n < 1 || n > len(sessions) {
			fmt.Println(color.ColorWarning("no such session"))
			return
		}
		if err := c.SetActiveSession(ctx, sessions[n-1].ID); err != nil {
			fmt.Println(color.ColorError("could not open session: " + err.Error()))
			return
		}
		fmt.Println(color.ColorTitle(sessions[n-1].Title))
		for _, m := range c.Messages() {
			printMessage(c, m)
		}

	case "/new":
		title := strings.Join(args, " ")
		if title == "" {
			title = "New Chat"
		}
		if _, err := c.CreateSession(ctx, title); err != nil {
			fmt.Println(color.ColorError("could not create session: " + err.Error()))
			return
		}
		fmt.Println(color.ColorInfo("started " + title))

	case "/rename":
		if len(args) == 0 {
			fmt.Println(color.ColorWarning("usage: /rename <title>"))
			return
		}
		id := c.ActiveSessionID()
		if id == "" {
			fmt.Println(color.ColorWarning("no active session"))
			return
		}
		if err := c.RenameSession(ctx, id, strings.Join(args, " ")); err != nil {
			fmt.Println(color.ColorError("rename failed: " + err.Error()))
		}

	case "/delete":
		id := c.ActiveSessionID()
		if id == "" {
			fmt.Println(color.ColorWarning("no active session"))
			return
		}
		if err := c.DeleteSession(ctx, id); err != nil {
			fmt.Println(color.ColorError("delete failed: " + err.Error()))
			return
		}
		fmt.Println(color.ColorInfo("session deleted"))

	case "/whoami":
		id := c.CurrentIdentity()
		if id == nil {
			fmt.Println(color.ColorInfo("not signed in"))
			return
		}
		state := "online"
		if c.IsOffline() {
			state = "offline"
		}
		fmt.Printf("%s (%s)\n", id.Email, state)

	default:
		fmt.Println(color.ColorWarning("unknown command, try /help"))
	}
}

func sendMessage(ctx context.Context, c *client.Client, content string) {
	userMsg, assistantMsg, err := c.Send(ctx, content, dispatch.GenerateOptions{})
	if err != nil {
		logging.ErrorLogger.Error("send failed", zap.Error(err))
		fmt.Println(color.ColorError("send failed: " + err.Error()))
		return
	}
	printMessage(c, userMsg)
	printMessage(c, assistantMsg)
}

func printMessage(c *client.Client, m model.Message) {
	switch m.Role {
	case model.RoleUser:
		fmt.Println(color.ColorUser("you: ") + m.Content)
	case model.RoleAssistant:
		label := "assistant"
		if m.Provider != "" {
			label = m.Provider
		}
		if m.Provider == model.ErrorProvider {
			fmt.Println(color.ColorError(label+": ") + m.Content)
			return
		}
		fmt.Println(color.ColorAssistant(label+": ") + m.Content)
	}
	if v, ok := c.Visualization(m.ID); ok {
		fmt.Println(color.ColorInfo("[" + v.Kind + " visualization attached]"))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.minima/state.db"
}
