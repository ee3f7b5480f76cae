package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/term"
	"github.com/moodclient/mudterm"
	"github.com/moodclient/mudterm/classify"
	"github.com/moodclient/mudterm/config"
	"github.com/moodclient/mudterm/utils"
)

type renderer struct {
	color bool

	speech lipgloss.Style
	info   lipgloss.Style
	room   lipgloss.Style
	system lipgloss.Style
}

func newRenderer(color bool) *renderer {
	return &renderer{
		color:  color,
		speech: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		info:   lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		room:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		system: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func (r *renderer) output(s *mudterm.Session, event classify.Event) {
	switch typed := event.(type) {
	case classify.OutputLine:
		if typed.Prompt {
			fmt.Print(r.renderLine(typed))
			return
		}
		fmt.Println(r.renderLine(typed))
	case classify.ConversationLine:
		line := fmt.Sprintf("%s %s: %s", typed.Speaker, typed.Label, typed.Message)
		fmt.Println(r.styled(r.speech, line))
	case classify.InfoMessage:
		fmt.Println(r.styled(r.info, "INFO "+typed.Text))
	case classify.MapBlock:
		r.printRoom(typed)
	case classify.HelpBlock:
		fmt.Println(r.styled(r.info, "--- "+typed.Title+" ---"))
		for _, line := range typed.BodyLines {
			fmt.Println(line)
		}
		if len(typed.Tags) > 0 {
			fmt.Println(r.styled(r.system, "See also: "+strings.Join(typed.Tags, ", ")))
		}
	}
}

func (r *renderer) renderLine(line classify.OutputLine) string {
	if !r.color {
		return line.Plain
	}

	var sb strings.Builder
	for _, segment := range line.Segments {
		if segment.Style.IsDefault() {
			sb.WriteString(segment.Text)
			continue
		}
		sb.WriteString(segment.Style.Lipgloss().Render(segment.Text))
	}
	return sb.String()
}

func (r *renderer) printRoom(block classify.MapBlock) {
	header := block.RoomName
	if block.Coords != "" {
		header += " (" + block.Coords + ")"
	}
	if header != "" {
		fmt.Println(r.styled(r.room, header))
	}
	for _, line := range block.Lines {
		fmt.Println(line)
	}
	if block.Exits != "" {
		fmt.Println(r.styled(r.room, block.Exits))
	}
	for _, paragraph := range block.Description {
		fmt.Println(paragraph)
	}
}

func (r *renderer) styled(style lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return style.Render(text)
}

func main() {
	configName := flag.String("config", "", "config name or path")
	profileName := flag.String("profile", "", "login profile name or path")
	debug := flag.Bool("debug", false, "enable protocol trace logging")
	noColor := flag.Bool("no-color", false, "disable color output")
	flag.Parse()

	cfg, err := config.Load(*configName)
	if err != nil {
		log.Fatalln(err)
	}

	if *profileName != "" {
		profile, err := config.LoadProfile(*profileName)
		if err != nil {
			log.Fatalln(err)
		}
		cfg.Profile = profile
	}

	address := cfg.Connection.Host + ":" + strconv.Itoa(cfg.Connection.Port)
	if flag.NArg() == 1 {
		address = flag.Arg(0)
	} else if flag.NArg() > 1 || cfg.Connection.Host == "" {
		log.Fatalln("syntax: mudterm [flags] <host>:<port>")
	}

	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		log.Fatalln(err)
	}

	conn, err := net.DialTCP("tcp", nil, addr)
	if err != nil {
		log.Fatalln(err)
	}

	lipgloss.EnableLegacyWindowsANSI(os.Stdout)

	colorProfile := colorprofile.Detect(os.Stdout, os.Environ())
	color := !*noColor && colorProfile != colorprofile.Ascii && colorProfile != colorprofile.NoTTY
	render := newRenderer(color)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := mudterm.NewSession(conn, mudterm.SessionConfig{
		Config:        cfg,
		CharsetName:   cfg.Connection.Charset,
		ClientName:    "mudterm",
		ClientVersion: "0.1.0",
		EventHooks: mudterm.EventHooks{
			Output: []mudterm.OutputHandler{render.output},
			EncounteredError: []mudterm.ErrorHandler{
				func(s *mudterm.Session, err error) {
					fmt.Fprintln(os.Stderr, render.styled(render.system, "! "+err.Error()))
				},
			},
		},
	})
	if err != nil {
		log.Fatalln(err)
	}

	logHandler := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	debugLog := utils.NewDebugLog(session, logHandler, utils.DebugLogConfig{
		EncounteredErrorLevel: slog.LevelError,
		IncomingCommandLevel:  slog.LevelInfo,
		IncomingTextLevel:     utils.LevelNone,
		OutboundCommandLevel:  slog.LevelInfo,
		OutboundTextLevel:     slog.LevelDebug,
		GMCPMessageLevel:      slog.LevelDebug,
		StateChangeLevel:      slog.LevelInfo,
	})
	debugLog.SetEnabled(*debug)

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

		<-sigs

		session.Close()
		cancel()
	}()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.EqualFold(strings.TrimSpace(line), "/debug") {
				state := "OFF"
				if debugLog.Toggle() {
					state = "ON"
				}
				fmt.Println(render.styled(render.system, "Debug logging "+state))
				continue
			}
			session.SendLine(line)
		}
		if term.IsTerminal(os.Stdin.Fd()) {
			// Ctrl-D at the terminal means quit.
			session.Close()
		}
	}()

	if err := session.Run(ctx); err != nil {
		fmt.Println("\x1b[0m")
		log.Fatalln(err)
	}

	fmt.Print("\x1b[0m")
}
