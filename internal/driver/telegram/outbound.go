package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"steam-party-bot/pkg/partybot"

	"github.com/gotd/td/crypto"
	gotdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message/unpack"
	"github.com/gotd/td/tg"
)

const defaultOutboundTimeout = 3 * time.Second

// OutboundOption mutates outbound dispatcher configuration.
type OutboundOption func(*outboundConfig)

// WithOutboundTimeout configures a timeout bound for each outbound RPC call.
func WithOutboundTimeout(timeout time.Duration) OutboundOption {
	return func(cfg *outboundConfig) {
		if timeout > 0 {
			cfg.rpcTimeout = timeout
		}
	}
}

// WithOutboundLogger configures structured logging for outbound operations.
func WithOutboundLogger(logger *slog.Logger) OutboundOption {
	return func(cfg *outboundConfig) {
		cfg.logger = logger
	}
}

// OutboundDispatcher adapts neutral outbound operations to Telegram RPC calls.
type OutboundDispatcher struct {
	cfg      outboundConfig
	peers    *PeerCache
	telegram outboundRPC
}

type outboundConfig struct {
	rpcTimeout time.Duration
	logger     *slog.Logger
}

// NewOutboundDispatcher creates a Telegram outbound dispatcher using gotd client APIs.
func NewOutboundDispatcher(
	client *gotdtelegram.Client,
	peers *PeerCache,
	options ...OutboundOption,
) (*OutboundDispatcher, error) {
	if client == nil {
		return nil, fmt.Errorf("new telegram outbound dispatcher: nil client")
	}

	return newOutboundDispatcherWithRPC(newGotdOutboundRPC(client), peers, options...)
}

func newOutboundDispatcherWithRPC(
	rpc outboundRPC,
	peers *PeerCache,
	options ...OutboundOption,
) (*OutboundDispatcher, error) {
	if rpc == nil {
		return nil, fmt.Errorf("new telegram outbound dispatcher: nil rpc adapter")
	}
	if peers == nil {
		return nil, fmt.Errorf("new telegram outbound dispatcher: nil peer cache")
	}

	cfg := outboundConfig{
		rpcTimeout: defaultOutboundTimeout,
	}
	for _, option := range options {
		option(&cfg)
	}

	return &OutboundDispatcher{
		cfg:      cfg,
		peers:    peers,
		telegram: rpc,
	}, nil
}

var _ partybot.OutboundDispatcher = (*OutboundDispatcher)(nil)

// SendMessage publishes a text message to a Telegram conversation.
func (d *OutboundDispatcher) SendMessage(
	ctx context.Context,
	request partybot.SendMessageRequest,
) (*partybot.OutboundMessage, error) {
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("send message validate: %w", err)
	}

	peer, err := d.peers.Resolve(request.Target.Conversation)
	if err != nil {
		return nil, fmt.Errorf("send message resolve peer: %w", err)
	}

	rpcCtx, cancel := d.withTimeout(ctx)
	defer cancel()

	id, err := d.telegram.SendText(rpcCtx, peer, request)
	if err != nil {
		return nil, fmt.Errorf("send message to %s: %w", request.Target.Conversation.ID, err)
	}

	d.logOutbound(
		ctx,
		"send_message",
		"conversation", request.Target.Conversation.ID,
		"conversation_type", request.Target.Conversation.Type,
		"message_id", id,
		"reply_to_message_id", request.ReplyToMessageID,
	)

	return &partybot.OutboundMessage{
		ID:     strconv.Itoa(id),
		Target: request.Target,
	}, nil
}

// EditMessage updates text for an existing Telegram message.
func (d *OutboundDispatcher) EditMessage(ctx context.Context, request partybot.EditMessageRequest) error {
	if err := request.Validate(); err != nil {
		return fmt.Errorf("edit message validate: %w", err)
	}

	peer, err := d.peers.Resolve(request.Target.Conversation)
	if err != nil {
		return fmt.Errorf("edit message resolve peer: %w", err)
	}

	messageID, err := parseMessageID(request.MessageID)
	if err != nil {
		return fmt.Errorf("edit message parse id %s: %w", request.MessageID, err)
	}

	rpcCtx, cancel := d.withTimeout(ctx)
	defer cancel()

	if err := d.telegram.EditText(rpcCtx, peer, messageID, request); err != nil {
		return fmt.Errorf("edit message %s: %w", request.MessageID, err)
	}

	d.logOutbound(
		ctx,
		"edit_message",
		"conversation", request.Target.Conversation.ID,
		"conversation_type", request.Target.Conversation.Type,
		"message_id", request.MessageID,
	)

	return nil
}

func (d *OutboundDispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.rpcTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, d.cfg.rpcTimeout)
}

func (d *OutboundDispatcher) logOutbound(ctx context.Context, operation string, attrs ...any) {
	if d.cfg.logger == nil {
		return
	}

	values := make([]any, 0, 2+len(attrs))
	values = append(values, "operation", operation, "platform", DriverPlatform)
	values = append(values, attrs...)
	d.cfg.logger.InfoContext(ctx, "telegram outbound operation", values...)
}

func parseMessageID(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid message id: %w", partybot.ErrInvalidOutboundRequest, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: invalid message id", partybot.ErrInvalidOutboundRequest)
	}

	return value, nil
}

// mapOutboundTextEntities converts rune entity ranges into Telegram UTF-16 ranges.
func mapOutboundTextEntities(text string, entities []partybot.TextEntity) ([]tg.MessageEntityClass, error) {
	if len(entities) == 0 {
		return nil, nil
	}

	utf16Offsets := buildUTF16Offsets(text)
	converted := make([]tg.MessageEntityClass, 0, len(entities))
	for index, entity := range entities {
		start := entity.Offset
		end := entity.Offset + entity.Length
		if start < 0 || end < start || end >= len(utf16Offsets) {
			return nil, fmt.Errorf(
				"entity[%d] invalid range [%d,%d) for text runes %d",
				index,
				start,
				end,
				len(utf16Offsets)-1,
			)
		}

		offsetUTF16 := utf16Offsets[start]
		lengthUTF16 := utf16Offsets[end] - utf16Offsets[start]
		telegramEntity, err := convertOutboundTextEntity(entity, offsetUTF16, lengthUTF16)
		if err != nil {
			return nil, fmt.Errorf("entity[%d] convert: %w", index, err)
		}
		converted = append(converted, telegramEntity)
	}

	return converted, nil
}

func convertOutboundTextEntity(
	entity partybot.TextEntity,
	offset int,
	length int,
) (tg.MessageEntityClass, error) {
	switch entity.Type {
	case partybot.TextEntityTypeBold:
		return &tg.MessageEntityBold{Offset: offset, Length: length}, nil
	case partybot.TextEntityTypeCode:
		return &tg.MessageEntityCode{Offset: offset, Length: length}, nil
	case partybot.TextEntityTypeTextURL:
		return &tg.MessageEntityTextURL{
			Offset: offset,
			Length: length,
			URL:    entity.URL,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported text entity type %q", partybot.ErrOutboundUnsupported, entity.Type)
	}
}

func buildUTF16Offsets(text string) []int {
	offsets := make([]int, 1, len(text)+1)
	current := 0
	for _, value := range text {
		current += utf16RuneLength(value)
		offsets = append(offsets, current)
	}

	return offsets
}

func utf16RuneLength(value rune) int {
	if value >= 0x10000 && value <= 0x10FFFF {
		return 2
	}

	return 1
}

type outboundRPC interface {
	SendText(ctx context.Context, peer tg.InputPeerClass, request partybot.SendMessageRequest) (int, error)
	EditText(ctx context.Context, peer tg.InputPeerClass, messageID int, request partybot.EditMessageRequest) error
}

type gotdOutboundRPC struct {
	raw  *tg.Client
	rand io.Reader
}

func newGotdOutboundRPC(client *gotdtelegram.Client) gotdOutboundRPC {
	return gotdOutboundRPC{
		raw:  client.API(),
		rand: crypto.DefaultRand(),
	}
}

func (r gotdOutboundRPC) SendText(
	ctx context.Context,
	peer tg.InputPeerClass,
	request partybot.SendMessageRequest,
) (int, error) {
	entities, err := mapOutboundTextEntities(request.Text, request.Entities)
	if err != nil {
		return 0, fmt.Errorf("map outbound entities: %w", err)
	}

	sendRequest := &tg.MessagesSendMessageRequest{
		Peer:      peer,
		Message:   request.Text,
		NoWebpage: request.DisableLinkPreview,
		Entities:  entities,
	}
	if request.ReplyToMessageID != "" {
		replyID, err := parseMessageID(request.ReplyToMessageID)
		if err != nil {
			return 0, fmt.Errorf("send text parse reply id %s: %w", request.ReplyToMessageID, err)
		}
		sendRequest.ReplyTo = &tg.InputReplyToMessage{
			ReplyToMsgID: replyID,
		}
	}

	randomID, err := crypto.RandInt64(r.rand)
	if err != nil {
		return 0, fmt.Errorf("send text random id: %w", err)
	}
	sendRequest.RandomID = randomID

	updates, err := r.raw.MessagesSendMessage(ctx, sendRequest)
	if err != nil {
		return 0, fmt.Errorf("send text: %w", err)
	}

	messageID, err := unpack.MessageID(updates, nil)
	if err != nil {
		return 0, fmt.Errorf("extract sent message id: %w", err)
	}

	return messageID, nil
}

func (r gotdOutboundRPC) EditText(
	ctx context.Context,
	peer tg.InputPeerClass,
	messageID int,
	request partybot.EditMessageRequest,
) error {
	entities, err := mapOutboundTextEntities(request.Text, request.Entities)
	if err != nil {
		return fmt.Errorf("map outbound entities: %w", err)
	}

	_, err = r.raw.MessagesEditMessage(ctx, &tg.MessagesEditMessageRequest{
		Peer:      peer,
		ID:        messageID,
		Message:   request.Text,
		NoWebpage: request.DisableLinkPreview,
		Entities:  entities,
	})
	if err != nil {
		return fmt.Errorf("edit text: %w", err)
	}

	return nil
}
