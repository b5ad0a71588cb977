package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"steam-party-bot/pkg/partybot"

	"github.com/gotd/td/tg"
)

const (
	gotdUnknownConversationID = "unknown"
	gotdUnknownActorID        = "unknown"
)

// DefaultGotdUpdateMapper maps gotd updates into adapter DTO updates.
type DefaultGotdUpdateMapper struct {
	peerCache *PeerCache
	directory *UserDirectory
}

// GotdUpdateMapperOption mutates DefaultGotdUpdateMapper behavior.
type GotdUpdateMapperOption func(*DefaultGotdUpdateMapper)

// WithPeerCache records entity-derived peer mappings for outbound dispatch.
func WithPeerCache(cache *PeerCache) GotdUpdateMapperOption {
	return func(mapper *DefaultGotdUpdateMapper) {
		if cache != nil {
			mapper.peerCache = cache
		}
	}
}

// WithUserDirectory records user identities seen in updates for handle resolution.
func WithUserDirectory(directory *UserDirectory) GotdUpdateMapperOption {
	return func(mapper *DefaultGotdUpdateMapper) {
		if directory != nil {
			mapper.directory = directory
		}
	}
}

// NewDefaultGotdUpdateMapper creates the default gotd mapper.
func NewDefaultGotdUpdateMapper(options ...GotdUpdateMapperOption) DefaultGotdUpdateMapper {
	mapper := DefaultGotdUpdateMapper{}
	for _, option := range options {
		option(&mapper)
	}

	return mapper
}

// Map converts a gotd raw update value into an adapter update.
func (m DefaultGotdUpdateMapper) Map(ctx context.Context, raw any) (Update, bool, error) {
	select {
	case <-ctx.Done():
		return Update{}, false, fmt.Errorf("map gotd update context: %w", ctx.Err())
	default:
	}

	envelope, err := normalizeGotdRaw(raw)
	if err != nil {
		return Update{}, false, fmt.Errorf("map gotd raw update: %w", err)
	}
	m.rememberEnvelope(envelope)

	switch update := envelope.update.(type) {
	case *tg.UpdateNewMessage:
		return m.mapNewMessage(update, envelope)
	case *tg.UpdateNewChannelMessage:
		return m.mapNewMessage(&tg.UpdateNewMessage{
			Message:  update.Message,
			Pts:      update.Pts,
			PtsCount: update.PtsCount,
		}, envelope)
	default:
		return Update{}, false, nil
	}
}

func (m DefaultGotdUpdateMapper) rememberEnvelope(envelope gotdUpdateEnvelope) {
	if m.peerCache != nil {
		m.peerCache.RememberEnvelope(envelope)
	}
	if m.directory != nil {
		m.directory.RememberUsers(envelope.usersByID)
	}
}

func (m DefaultGotdUpdateMapper) rememberConversationPeer(chat ChatRef, peer tg.InputPeerClass) {
	if m.peerCache != nil {
		m.peerCache.RememberConversation(chat, peer)
	}
}

func normalizeGotdRaw(raw any) (gotdUpdateEnvelope, error) {
	switch typed := raw.(type) {
	case gotdUpdateEnvelope:
		return typed, nil
	case *gotdUpdateEnvelope:
		if typed == nil {
			return gotdUpdateEnvelope{}, fmt.Errorf("nil envelope")
		}
		return *typed, nil
	case tg.UpdateClass:
		if typed == nil {
			return gotdUpdateEnvelope{}, fmt.Errorf("nil update class")
		}
		return gotdUpdateEnvelope{
			update:      typed,
			occurredAt:  time.Now().UTC(),
			updateClass: typed.TypeName(),
		}, nil
	default:
		return gotdUpdateEnvelope{}, fmt.Errorf("unsupported raw type %T", raw)
	}
}

func (m DefaultGotdUpdateMapper) mapNewMessage(
	update *tg.UpdateNewMessage,
	envelope gotdUpdateEnvelope,
) (Update, bool, error) {
	if update == nil {
		return Update{}, false, fmt.Errorf("map new message: nil update")
	}

	message, ok := update.Message.(*tg.Message)
	if !ok {
		return Update{}, false, nil
	}

	return m.mapMessage(message, envelope)
}

func (m DefaultGotdUpdateMapper) mapMessage(
	message *tg.Message,
	envelope gotdUpdateEnvelope,
) (Update, bool, error) {
	if message == nil {
		return Update{}, false, fmt.Errorf("map message: nil message")
	}

	chat := resolveChatFromPeer(message.PeerID, envelope)
	actor := resolveActorFromPeer(message.FromID, envelope)
	if actor.ID == gotdUnknownActorID {
		actor = resolveActorFromPeer(message.PeerID, envelope)
	}

	payload := &MessagePayload{
		ID:       strconv.Itoa(message.ID),
		Text:     message.Message,
		Entities: mapInboundTextEntities(message.Message, message.Entities),
	}
	if replyTo, ok := message.GetReplyTo(); ok {
		if header, ok := replyTo.(*tg.MessageReplyHeader); ok {
			if replyToMessageID, ok := header.GetReplyToMsgID(); ok {
				payload.ReplyToID = strconv.Itoa(replyToMessageID)
			}
		}
	}

	occurredAt := intToTimeUTC(message.Date)
	if occurredAt.IsZero() {
		occurredAt = envelope.occurredAt
	}
	m.rememberConversationPeer(chat, resolveInputPeerFromPeer(message.PeerID, envelope))

	return Update{
		ID:         composeUpdateID(UpdateTypeMessage, chat.ID, payload.ID, occurredAt),
		Type:       UpdateTypeMessage,
		OccurredAt: occurredAt,
		Chat:       chat,
		Actor:      actor,
		Message:    payload,
		Metadata:   newGotdMetadata(envelope),
	}, true, nil
}

type gotdUpdateEnvelope struct {
	update      tg.UpdateClass
	occurredAt  time.Time
	usersByID   map[int64]*tg.User
	chatsByID   map[int64]gotdChatInfo
	updateClass string
}

type gotdChatInfo struct {
	title     string
	kind      partybot.ConversationType
	inputPeer tg.InputPeerClass
}

func indexGotdUsers(users []tg.UserClass) map[int64]*tg.User {
	if len(users) == 0 {
		return nil
	}

	out := make(map[int64]*tg.User, len(users))
	for _, user := range users {
		if user == nil {
			continue
		}
		notEmpty, ok := user.AsNotEmpty()
		if !ok || notEmpty == nil {
			continue
		}
		out[notEmpty.ID] = notEmpty
	}

	return out
}

func indexGotdChats(chats []tg.ChatClass) map[int64]gotdChatInfo {
	if len(chats) == 0 {
		return nil
	}

	out := make(map[int64]gotdChatInfo, len(chats))
	for _, chat := range chats {
		if chat == nil {
			continue
		}

		switch typed := chat.(type) {
		case *tg.Chat:
			out[typed.ID] = gotdChatInfo{
				title:     typed.Title,
				kind:      partybot.ConversationTypeGroup,
				inputPeer: typed.AsInputPeer(),
			}
		case *tg.ChatForbidden:
			out[typed.ID] = gotdChatInfo{
				title: typed.Title,
				kind:  partybot.ConversationTypeGroup,
				inputPeer: &tg.InputPeerChat{
					ChatID: typed.ID,
				},
			}
		case *tg.Channel:
			kind := partybot.ConversationTypeChannel
			if typed.Megagroup {
				kind = partybot.ConversationTypeGroup
			}
			out[typed.ID] = gotdChatInfo{
				title:     typed.Title,
				kind:      kind,
				inputPeer: typed.AsInputPeer(),
			}
		case *tg.ChannelForbidden:
			kind := partybot.ConversationTypeChannel
			if typed.Megagroup {
				kind = partybot.ConversationTypeGroup
			}
			out[typed.ID] = gotdChatInfo{
				title: typed.Title,
				kind:  kind,
				inputPeer: &tg.InputPeerChannel{
					ChannelID:  typed.ID,
					AccessHash: typed.AccessHash,
				},
			}
		}
	}

	return out
}

func resolveChatFromPeer(peer tg.PeerClass, envelope gotdUpdateEnvelope) ChatRef {
	switch typed := peer.(type) {
	case *tg.PeerUser:
		actor := resolveActorByUserID(typed.UserID, envelope)
		return ChatRef{
			ID:    actor.ID,
			Type:  partybot.ConversationTypePrivate,
			Title: actor.DisplayName,
		}
	case *tg.PeerChat:
		return resolveChatByChatID(typed.ChatID, envelope)
	case *tg.PeerChannel:
		return resolveChatByChannelID(typed.ChannelID, envelope)
	default:
		return ChatRef{
			ID:   gotdUnknownConversationID,
			Type: partybot.ConversationTypePrivate,
		}
	}
}

func resolveChatByChatID(chatID int64, envelope gotdUpdateEnvelope) ChatRef {
	id := strconv.FormatInt(chatID, 10)
	info, ok := envelope.chatsByID[chatID]
	if !ok {
		return ChatRef{
			ID:   id,
			Type: partybot.ConversationTypeGroup,
		}
	}

	return ChatRef{
		ID:    id,
		Title: info.title,
		Type:  info.kind,
	}
}

func resolveChatByChannelID(channelID int64, envelope gotdUpdateEnvelope) ChatRef {
	id := strconv.FormatInt(channelID, 10)
	info, ok := envelope.chatsByID[channelID]
	if !ok {
		return ChatRef{
			ID:   id,
			Type: partybot.ConversationTypeChannel,
		}
	}

	return ChatRef{
		ID:    id,
		Title: info.title,
		Type:  info.kind,
	}
}

func resolveActorFromPeer(peer tg.PeerClass, envelope gotdUpdateEnvelope) ActorRef {
	switch typed := peer.(type) {
	case *tg.PeerUser:
		return resolveActorByUserID(typed.UserID, envelope)
	case *tg.PeerChat:
		return ActorRef{
			ID:          strconv.FormatInt(typed.ChatID, 10),
			DisplayName: lookupChatTitle(typed.ChatID, envelope),
		}
	case *tg.PeerChannel:
		return ActorRef{
			ID:          strconv.FormatInt(typed.ChannelID, 10),
			DisplayName: lookupChatTitle(typed.ChannelID, envelope),
		}
	default:
		return ActorRef{ID: gotdUnknownActorID}
	}
}

func resolveActorByUserID(userID int64, envelope gotdUpdateEnvelope) ActorRef {
	id := strconv.FormatInt(userID, 10)
	if userID == 0 {
		return ActorRef{ID: gotdUnknownActorID}
	}

	user, ok := envelope.usersByID[userID]
	if !ok || user == nil {
		return ActorRef{ID: id}
	}

	username, _ := user.GetUsername()
	firstName, _ := user.GetFirstName()
	lastName, _ := user.GetLastName()

	displayName := strings.TrimSpace(firstName + " " + lastName)
	if displayName == "" {
		displayName = username
	}
	if displayName == "" {
		displayName = id
	}

	return ActorRef{
		ID:          id,
		Username:    username,
		DisplayName: displayName,
		IsBot:       user.Bot,
	}
}

func resolveInputPeerFromPeer(peer tg.PeerClass, envelope gotdUpdateEnvelope) tg.InputPeerClass {
	switch typed := peer.(type) {
	case *tg.PeerUser:
		return resolveInputPeerByUserID(typed.UserID, envelope)
	case *tg.PeerChat:
		return resolveInputPeerByChatID(typed.ChatID)
	case *tg.PeerChannel:
		return resolveInputPeerByChannelID(typed.ChannelID, envelope)
	default:
		return nil
	}
}

func resolveInputPeerByUserID(userID int64, envelope gotdUpdateEnvelope) tg.InputPeerClass {
	if userID == 0 {
		return nil
	}

	user, ok := envelope.usersByID[userID]
	if !ok || user == nil {
		return nil
	}

	return user.AsInputPeer()
}

func resolveInputPeerByChatID(chatID int64) tg.InputPeerClass {
	if chatID == 0 {
		return nil
	}

	return &tg.InputPeerChat{ChatID: chatID}
}

func resolveInputPeerByChannelID(channelID int64, envelope gotdUpdateEnvelope) tg.InputPeerClass {
	if channelID == 0 {
		return nil
	}

	info, ok := envelope.chatsByID[channelID]
	if !ok || info.inputPeer == nil {
		return nil
	}

	return cloneInputPeer(info.inputPeer)
}

func lookupChatTitle(chatID int64, envelope gotdUpdateEnvelope) string {
	info, ok := envelope.chatsByID[chatID]
	if !ok {
		return ""
	}
	return info.title
}

// mapInboundTextEntities converts Telegram UTF-16 entity ranges to rune ranges.
// Unsupported entity classes are dropped.
func mapInboundTextEntities(text string, entities []tg.MessageEntityClass) []partybot.TextEntity {
	if len(entities) == 0 {
		return nil
	}

	utf16Offsets := buildUTF16Offsets(text)
	out := make([]partybot.TextEntity, 0, len(entities))
	for _, entity := range entities {
		if entity == nil {
			continue
		}

		var entityType partybot.TextEntityType
		var url string
		switch typed := entity.(type) {
		case *tg.MessageEntityBold:
			entityType = partybot.TextEntityTypeBold
		case *tg.MessageEntityCode:
			entityType = partybot.TextEntityTypeCode
		case *tg.MessageEntityTextURL:
			entityType = partybot.TextEntityTypeTextURL
			url = typed.URL
		default:
			continue
		}

		start, startOK := runeIndexForUTF16(utf16Offsets, entity.GetOffset())
		end, endOK := runeIndexForUTF16(utf16Offsets, entity.GetOffset()+entity.GetLength())
		if !startOK || !endOK || end <= start {
			continue
		}

		out = append(out, partybot.TextEntity{
			Type:   entityType,
			Offset: start,
			Length: end - start,
			URL:    url,
		})
	}

	if len(out) == 0 {
		return nil
	}

	return out
}

// runeIndexForUTF16 locates the rune index whose UTF-16 prefix equals target.
func runeIndexForUTF16(utf16Offsets []int, target int) (int, bool) {
	for index, offset := range utf16Offsets {
		if offset == target {
			return index, true
		}
		if offset > target {
			return 0, false
		}
	}

	return 0, false
}

func intToTimeUTC(value int) time.Time {
	if value <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(value), 0).UTC()
}

func composeUpdateID(updateType UpdateType, chatID string, parts ...any) string {
	values := []string{"tg", string(updateType)}
	if chatID != "" {
		values = append(values, chatID)
	}
	for _, part := range parts {
		switch typed := part.(type) {
		case string:
			if typed != "" {
				values = append(values, typed)
			}
		case time.Time:
			if !typed.IsZero() {
				values = append(values, strconv.FormatInt(typed.UnixNano(), 10))
			}
		default:
			values = append(values, fmt.Sprint(part))
		}
	}

	return strings.Join(values, ":")
}

func newGotdMetadata(envelope gotdUpdateEnvelope) map[string]string {
	if envelope.updateClass == "" {
		return nil
	}
	return map[string]string{
		"gotd_update": envelope.updateClass,
	}
}
