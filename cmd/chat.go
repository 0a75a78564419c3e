package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/karenos/fusion-chat/internal/chat"
	"github.com/karenos/fusion-chat/internal/config"
	"github.com/karenos/fusion-chat/internal/llm"
	"github.com/karenos/fusion-chat/internal/store"
)

var (
	chatModel  string
	chatSystem string
	chatName   string
	chatResume string
	chatAttach string
	chatNoSave bool
)

func init() {
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Model to chat with (prefix local/ for the embedded engine)")
	chatCmd.Flags().StringVarP(&chatSystem, "system", "s", "", "System prompt")
	chatCmd.Flags().StringVar(&chatName, "name", "", "Name for the new chat slot")
	chatCmd.Flags().StringVar(&chatResume, "resume", "", "Resume a saved chat by ID")
	chatCmd.Flags().StringVar(&chatAttach, "attach", "", "Reference data file (.json or .md)")
	chatCmd.Flags().BoolVar(&chatNoSave, "no-save", false, "Do not persist this chat")
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start or resume an interactive chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

// chatSession holds the live state of one REPL: the conversation log, the
// selected backends, and the active attachment. There is at most one
// in-flight send at a time; the REPL blocks until each send completes.
type chatSession struct {
	cfg        *config.Config
	log        *chat.Log
	store      store.Store
	catalog    *llm.Catalog
	remote     *llm.RemoteBackend
	embedded   *llm.EmbeddedBackend
	attachment *chat.Attachment
	out        *bufio.Writer
	logger     *slog.Logger
}

func runChat(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var st store.Store
	if chatNoSave {
		st = &store.NoopStore{}
	} else {
		sqlStore, err := store.NewSQLiteStore(logger)
		if err != nil {
			return err
		}
		st = sqlStore
	}
	defer st.Close()

	conv, err := openConversation(cfg, st)
	if err != nil {
		return err
	}

	session := &chatSession{
		cfg:     cfg,
		log:     chat.NewLog(conv),
		store:   st,
		catalog: llm.LoadCatalog(ctx, cfg.APIKey),
		remote:  llm.NewRemoteBackend(cfg.APIKey, cfg.AppURL, cfg.AppTitle),
		out:     bufio.NewWriter(os.Stdout),
		logger:  logger,
	}

	if chatAttach != "" {
		att, err := chat.LoadAttachment(chatAttach)
		if err != nil {
			return err
		}
		session.attachment = att
	}

	return session.repl(ctx)
}

func openConversation(cfg *config.Config, st store.Store) (*chat.Conversation, error) {
	if chatResume != "" {
		conv, err := st.Load(chatResume)
		if err != nil {
			return nil, fmt.Errorf("resume %s: %w", chatResume, err)
		}
		return conv, nil
	}

	model := chatModel
	if model == "" {
		model = cfg.Model
	}
	system := chatSystem
	if system == "" {
		system = cfg.SystemPrompt
	}
	conv := chat.NewConversation(chatName, system, model)
	if err := st.SaveConversation(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *chatSession) repl(ctx context.Context) error {
	conv := s.log.Conversation()
	fmt.Fprintf(s.out, "chat %s | model %s | /help for commands\n", chat.ShortID(conv.ID), conv.ActiveModel)
	s.replayHistory()
	s.out.Flush()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		capacity := llm.Capacity(s.log.Len(), s.lookupMeta())
		s.printPrompt(capacity)
		s.out.Flush()

		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "/") {
			quit, err := s.handleCommand(ctx, line)
			if err != nil {
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
			if quit {
				s.out.Flush()
				return nil
			}
			continue
		}

		s.send(ctx, line)
	}
}

func (s *chatSession) printPrompt(capacity llm.CapacityState) {
	switch {
	case capacity.Pairs >= capacity.MaxPairs:
		fmt.Fprintf(s.out, "[%d/%d FULL] > ", capacity.Pairs, capacity.MaxPairs)
	case capacity.Pairs >= capacity.DangerAt:
		fmt.Fprintf(s.out, "[%d/%d!] > ", capacity.Pairs, capacity.MaxPairs)
	case capacity.Pairs >= capacity.WarnAt:
		fmt.Fprintf(s.out, "[%d/%d] > ", capacity.Pairs, capacity.MaxPairs)
	default:
		fmt.Fprint(s.out, "> ")
	}
}

func (s *chatSession) replayHistory() {
	for _, turn := range s.log.Turns() {
		switch turn.Role {
		case chat.RoleUser:
			fmt.Fprintf(s.out, "> %s\n", turn.Content)
		case chat.RoleAssistant:
			fmt.Fprintf(s.out, "%s\n", turn.Content)
		}
	}
}

func (s *chatSession) handleCommand(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		fmt.Fprint(s.out, `  /regen <i>       regenerate from the user turn at index i
  /edit <i> <text> replace the user turn at index i and re-send
  /delete <i>      delete the user turn at index i and everything after
  /attach <path>   attach a reference file (.json or .md)
  /detach          clear the attachment
  /model <id>      switch model (prefix local/ for the embedded engine)
  /export <path>   export this chat as JSON (or .md for markdown)
  /quit            leave
`)
		return false, nil
	case "/quit", "/exit":
		return true, nil
	case "/regen":
		if len(args) != 1 {
			return false, errors.New("usage: /regen <index>")
		}
		return false, s.regenerate(ctx, args[0], "")
	case "/edit":
		if len(args) < 2 {
			return false, errors.New("usage: /edit <index> <new text>")
		}
		indexArg, newText := splitEditArgs(line)
		return false, s.regenerate(ctx, indexArg, newText)
	case "/delete":
		if len(args) != 1 {
			return false, errors.New("usage: /delete <index>")
		}
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("bad index %q", args[0])
		}
		if err := s.log.DeleteFrom(index); err != nil {
			return false, err
		}
		return false, s.store.TruncateFrom(s.log.Conversation().ID, index)
	case "/attach":
		if len(args) != 1 {
			return false, errors.New("usage: /attach <path>")
		}
		att, err := chat.LoadAttachment(args[0])
		if err != nil {
			return false, err
		}
		s.attachment = att
		block, err := att.ReferenceBlock()
		if err != nil {
			s.attachment = nil
			return false, err
		}
		fmt.Fprintf(s.out, "attached %s (%s, ~%d tokens)\n", att.Name, att.Type, llm.EstimateTokens(block))
		return false, nil
	case "/detach":
		s.attachment = nil
		return false, nil
	case "/model":
		if len(args) != 1 {
			return false, errors.New("usage: /model <id>")
		}
		s.log.Conversation().ActiveModel = args[0]
		return false, s.store.SaveConversation(s.log.Conversation())
	case "/export":
		if len(args) != 1 {
			return false, errors.New("usage: /export <path>")
		}
		return false, s.export(args[0])
	default:
		return false, fmt.Errorf("unknown command %s", cmd)
	}
}

// splitEditArgs parses "/edit <index> <new text>", keeping the replacement
// text verbatim: interior whitespace is part of the message, not a token
// separator.
func splitEditArgs(line string) (indexArg, newText string) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "/edit"))
	i := strings.IndexAny(rest, " \t")
	if i < 0 {
		return rest, ""
	}
	return rest[:i], strings.TrimSpace(rest[i+1:])
}

// regenerate truncates at the anchor and re-sends. With newText empty this is
// regenerate; with newText set it is edit.
func (s *chatSession) regenerate(ctx context.Context, indexArg, newText string) error {
	index, err := strconv.Atoi(indexArg)
	if err != nil {
		return fmt.Errorf("bad index %q", indexArg)
	}
	captured, err := s.log.Regenerate(index)
	if err != nil {
		return err
	}
	if err := s.store.TruncateFrom(s.log.Conversation().ID, index); err != nil {
		return err
	}
	text := captured
	if newText != "" {
		text = newText
	}
	s.send(ctx, text)
	return nil
}

// send runs one full request/response cycle: validate, check capacity, build
// the payload, stream, then commit the completed pair. A failed send appends
// nothing; the error is shown and the log keeps its pre-send state.
func (s *chatSession) send(ctx context.Context, text string) {
	conv := s.log.Conversation()

	// An empty message on an empty thread sends the canned smoke-test
	// question, matching long-standing behavior.
	if text == "" {
		if s.log.Len() > 0 {
			fmt.Fprintln(s.out, "enter a message")
			return
		}
		text = `How many "r" in strawberry?`
		fmt.Fprintf(s.out, "> %s\n", text)
	}

	result, userTurn, assistantTurn, err := s.runSend(ctx, text)
	if err != nil {
		// Nothing is persisted on failure: no dangling user turn, no partial
		// assistant turn.
		fmt.Fprintf(s.out, "\nError: %v\n", err)
		return
	}

	seq := s.log.Len()
	if err := s.log.AppendPair(userTurn, assistantTurn); err != nil {
		fmt.Fprintf(s.out, "\nError: %v\n", err)
		return
	}
	if err := s.store.AppendTurns(conv.ID, seq, userTurn, assistantTurn); err != nil {
		s.logger.Warn("persist failed", "error", err)
	}

	fmt.Fprintf(s.out, "\n[%.2fs to first token]\n", result.TTFT.Seconds())
}

func (s *chatSession) runSend(ctx context.Context, text string) (llm.Result, chat.Turn, chat.Turn, error) {
	conv := s.log.Conversation()

	if conv.ActiveModel == "" {
		return llm.Result{}, chat.Turn{}, chat.Turn{}, &llm.ValidationError{Reason: "no model selected; use /model"}
	}
	ref := llm.ParseModelRef(conv.ActiveModel)
	if ref.Kind == llm.ModelRemote && s.cfg.APIKey == "" {
		return llm.Result{}, chat.Turn{}, chat.Turn{}, &llm.ValidationError{Reason: "no API key set; set OPENROUTER_API_KEY or add api_key to the config file"}
	}

	meta := s.catalog.Lookup(ref.ID)
	if err := llm.CheckCapacity(s.log.Len(), meta); err != nil {
		return llm.Result{}, chat.Turn{}, chat.Turn{}, err
	}

	payload, err := llm.BuildPayload(conv, s.log.Turns(), text, s.attachment, ref)
	if err != nil {
		return llm.Result{}, chat.Turn{}, chat.Turn{}, err
	}

	backend, err := s.backendFor(ref)
	if err != nil {
		return llm.Result{}, chat.Turn{}, chat.Turn{}, err
	}

	req := llm.Request{
		Model:    ref.ID,
		Messages: payload,
		Params: llm.GenParams{
			Temperature: s.cfg.Embedded.Temperature,
			MaxTokens:   s.cfg.Embedded.MaxTokens,
		},
	}

	inReasoning := false
	result, err := llm.RunSessionWithDeltas(ctx, backend, req, func(event llm.Event) {
		switch event.Type {
		case llm.EventReasoningDelta:
			if !inReasoning {
				inReasoning = true
				fmt.Fprint(s.out, "(thinking) ")
			}
		case llm.EventContentDelta:
			if inReasoning {
				inReasoning = false
				fmt.Fprint(s.out, "\n")
			}
			fmt.Fprint(s.out, event.Text)
		}
		s.out.Flush()
	})
	if err != nil {
		return result, chat.Turn{}, chat.Turn{}, err
	}

	attachmentName := ""
	if s.attachment != nil {
		attachmentName = s.attachment.Name
	}
	userTurn := chat.NewUserTurn(text, attachmentName)
	assistantTurn := chat.NewAssistantTurn(result.Text, result.ReasoningText, conv.ActiveModel, result.TTFT.Seconds())
	return result, userTurn, assistantTurn, nil
}

// backendFor routes by model kind. The embedded engine is created once and
// loads lazily on first use.
func (s *chatSession) backendFor(ref llm.ModelRef) (llm.Backend, error) {
	switch ref.Kind {
	case llm.ModelEmbedded:
		if s.embedded == nil {
			if s.cfg.Embedded.ModulePath == "" {
				return nil, &llm.ValidationError{Reason: "no embedded engine configured; set embedded.module_path in the config file"}
			}
			s.embedded = llm.NewEmbeddedBackend(s.cfg.Embedded.ModulePath, func(stage string, fraction float64) {
				fmt.Fprintf(s.out, "loading engine: %s (%.0f%%)\n", stage, fraction*100)
				s.out.Flush()
			}, s.logger)
		}
		return s.embedded, nil
	default:
		return s.remote, nil
	}
}

func (s *chatSession) lookupMeta() *llm.ModelMeta {
	conv := s.log.Conversation()
	if conv.ActiveModel == "" {
		return nil
	}
	return s.catalog.Lookup(llm.ParseModelRef(conv.ActiveModel).ID)
}

func (s *chatSession) export(path string) error {
	conv := s.log.Conversation()
	turns := s.log.Turns()

	if strings.HasSuffix(path, ".md") {
		return os.WriteFile(path, []byte(chat.ExportToMarkdown(conv, turns)), 0644)
	}

	referenceData := ""
	if s.attachment != nil {
		block, err := s.attachment.ReferenceBlock()
		if err != nil {
			return err
		}
		referenceData = block
	}
	snapshot := chat.Export(conv, turns, referenceData)
	data, err := snapshot.MarshalIndent()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
