package main

import (
	"chat-broker/api"
	"chat-broker/auth"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

const usage = `chatctl talks to a running chat broker.

Usage:
  chatctl token    -user U1 [-roles student,mentor] [-ttl 24h]
  chatctl post     -channel dsa -content "hello" [-lang go -code-file main.go]
  chatctl history  -channel dsa [-limit 20] [-before 2026-01-02T15:04:05.999999999Z]
  chatctl channels
  chatctl watch    -channel dsa [-channel dbms]

Environment: CHAT_BROKER_URL, CHAT_TOKEN, JWT_SECRET, JWT_ISSUER.
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	_ = godotenv.Load()
	config, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if !config.Colours {
		color.Disable()
	}
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	client := newBrokerClient(config.BrokerURL, config.Token)

	switch args[0] {
	case "token":
		return tokenCommand(config, args[1:], out)
	case "post":
		return postCommand(ctx, client, args[1:], out)
	case "history":
		return historyCommand(ctx, client, args[1:], out)
	case "channels":
		return channelsCommand(ctx, client, out)
	case "watch":
		return watchCommand(ctx, client, args[1:], out)
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// tokenCommand issues a development token signed with the broker secret.
func tokenCommand(config Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	user := fs.String("user", "", "user id carried by the token")
	roles := fs.String("roles", "student", "comma separated roles")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return fmt.Errorf("-user is required")
	}
	if config.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required to issue tokens")
	}
	token, err := auth.NewVerifier(config.JWTSecret, config.JWTIssuer).
		Issue(*user, strings.Split(*roles, ","), *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func postCommand(ctx context.Context, client *brokerClient, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("post", flag.ContinueOnError)
	channel := fs.String("channel", "", "target channel")
	content := fs.String("content", "", "message text")
	lang := fs.String("lang", "", "language of the attached snippet")
	codeFile := fs.String("code-file", "", "file attached as a code snippet")
	if err := fs.Parse(args); err != nil {
		return err
	}

	body := api.PostMessageRequest{Channel: *channel, Content: *content}
	if *codeFile != "" {
		code, err := os.ReadFile(*codeFile)
		if err != nil {
			return err
		}
		body.Code = &api.Code{Language: *lang, Content: string(code)}
	}

	message, err := client.Post(ctx, body)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s in %s at %s\n", color.Green.Render("posted"), message.ID,
		message.Channel, message.CreatedAt.Format(time.RFC3339Nano))
	return nil
}

func historyCommand(ctx context.Context, client *brokerClient, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	channel := fs.String("channel", "", "channel to read")
	limit := fs.Int("limit", 0, "page size, the broker default applies when 0")
	before := fs.String("before", "", "exclusive RFC 3339 cursor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	messages, err := client.History(ctx, *channel, *before, *limit)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Created At", "Author", "Content", "Code"})
	table.SetAutoWrapText(false)
	for _, m := range messages {
		code := ""
		if m.Code != nil {
			code = m.Code.Language
		}
		table.Append([]string{m.CreatedAt.Format(time.RFC3339Nano), m.AuthorID, m.Content, code})
	}
	table.Render()
	if len(messages) > 0 {
		fmt.Fprintf(out, "next page: -before %s\n", messages[0].CreatedAt.Format(time.RFC3339Nano))
	}
	return nil
}

func channelsCommand(ctx context.Context, client *brokerClient, out io.Writer) error {
	channels, err := client.Channels(ctx)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Channel", "Online"})
	for _, c := range channels {
		table.Append([]string{c.Channel, strconv.Itoa(c.Count)})
	}
	table.Render()
	return nil
}

type channelList []string

func (c *channelList) String() string     { return strings.Join(*c, ",") }
func (c *channelList) Set(v string) error { *c = append(*c, v); return nil }

func watchCommand(ctx context.Context, client *brokerClient, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	var channels channelList
	fs.Var(&channels, "channel", "channel to follow, repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(channels) == 0 {
		return fmt.Errorf("at least one -channel is required")
	}

	return client.Watch(ctx, channels, func(frame api.Frame) {
		fmt.Fprintln(out, renderFrame(frame))
	})
}

func renderFrame(frame api.Frame) string {
	switch frame.Type {
	case api.FrameMessage:
		m := frame.Message
		line := fmt.Sprintf("%s %s %s: %s",
			color.Gray.Render(m.CreatedAt.Format("15:04:05.000")),
			color.Cyan.Render("#"+m.Channel),
			color.Yellow.Render(m.AuthorID),
			m.Content)
		if m.Code != nil {
			line += color.Magenta.Render(fmt.Sprintf("\n```%s\n%s\n```", m.Code.Language, m.Code.Content))
		}
		return line
	case api.FrameJoined:
		return color.Green.Render("joined #" + frame.Channel)
	case api.FrameLeft:
		return color.Green.Render("left #" + frame.Channel)
	case api.FrameError:
		return color.Red.Render(fmt.Sprintf("error %s: %s", frame.Error.Kind, frame.Error.Message))
	default:
		return fmt.Sprintf("%+v", frame)
	}
}
