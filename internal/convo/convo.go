// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package convo implements the conversation service from spec §4.2: list,
// get-or-create, get-detail, update-title, and delete over both the
// personal and channel-scoped conversation tables. Ownership checks here
// are authoritative — the gateway trusts this package's verdicts.
package convo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tubechat/tubechat/internal/domain"
	"github.com/tubechat/tubechat/internal/store"
)

// ListResult is the paginated envelope spec §4.2 calls for:
// {items, total, limit, offset}.
type ListResult[T any] struct {
	Items  []T
	Total  int
	Limit  int
	Offset int
}

// DefaultTitle builds "Chat <YYYY-MM-DD HH:MM>" in UTC, used whenever a
// caller creates a personal conversation without supplying a title.
func DefaultTitle(now time.Time) string {
	return "Chat " + now.UTC().Format("2006-01-02 15:04")
}

// PersonalStore is the subset of *store.Store the Personal service needs,
// narrowed for testability.
type PersonalStore interface {
	CreateConversation(ctx context.Context, userID uuid.UUID, title string) (domain.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (domain.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Conversation, int, error)
	UpdateConversationTitle(ctx context.Context, id, userID uuid.UUID, title string) error
	DeleteConversation(ctx context.Context, id, userID uuid.UUID) error
	AllMessages(ctx context.Context, column string, id uuid.UUID) ([]domain.Message, error)
}

// Personal implements the personal-conversation half of the table in
// spec §4.2.
type Personal struct {
	store PersonalStore
	now   func() time.Time
}

// NewPersonal builds a Personal conversation service over store.
func NewPersonal(s PersonalStore) *Personal {
	return &Personal{store: s, now: time.Now}
}

// List returns a user's personal conversations, newest-updated first.
func (p *Personal) List(ctx context.Context, userID uuid.UUID, limit, offset int) (ListResult[domain.Conversation], error) {
	items, total, err := p.store.ListConversations(ctx, userID, limit, offset)
	if err != nil {
		return ListResult[domain.Conversation]{}, fmt.Errorf("convo: list personal: %w", err)
	}
	return ListResult[domain.Conversation]{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// GetOrCreate resolves a turn's target conversation: if id is nil, a new
// conversation is created with the default title; otherwise the existing
// conversation is loaded and ownership is verified (spec §4.1 step 3,
// §4.2 get_or_create).
func (p *Personal) GetOrCreate(ctx context.Context, userID uuid.UUID, id *uuid.UUID) (domain.Conversation, error) {
	if id == nil {
		return p.store.CreateConversation(ctx, userID, DefaultTitle(p.now()))
	}

	c, err := p.store.GetConversation(ctx, *id)
	if err != nil {
		return domain.Conversation{}, err
	}
	if c.UserID != userID {
		return domain.Conversation{}, ErrForbidden
	}
	return c, nil
}

// Detail is a conversation plus every message it holds, ascending.
type Detail struct {
	Conversation domain.Conversation
	Messages     []domain.Message
}

// GetDetail loads a conversation and its full message history, enforcing
// ownership (spec §4.2: "404 if missing, 403 if not owner").
func (p *Personal) GetDetail(ctx context.Context, id, userID uuid.UUID) (Detail, error) {
	c, err := p.store.GetConversation(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if c.UserID != userID {
		return Detail{}, ErrForbidden
	}
	msgs, err := p.store.AllMessages(ctx, "conversation_id", id)
	if err != nil {
		return Detail{}, fmt.Errorf("convo: load personal detail: %w", err)
	}
	return Detail{Conversation: c, Messages: msgs}, nil
}

// UpdateTitle renames a conversation, enforcing both the length invariant
// and ownership.
func (p *Personal) UpdateTitle(ctx context.Context, id, userID uuid.UUID, title string) error {
	if title == "" || len(title) > maxTitleLen {
		return ErrInvalidTitle
	}
	if err := p.store.UpdateConversationTitle(ctx, id, userID, title); err != nil {
		return err
	}
	return nil
}

// Delete removes a conversation and cascades to its messages, enforcing
// ownership.
func (p *Personal) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return p.store.DeleteConversation(ctx, id, userID)
}

// ChannelStore is the subset of *store.Store the Channel service needs,
// narrowed for testability.
type ChannelStore interface {
	GetActiveChannel(ctx context.Context, id uuid.UUID) (domain.Channel, error)
	GetOrCreateChannelConversation(ctx context.Context, userID, channelID uuid.UUID) (domain.ChannelConversation, error)
	GetChannelConversation(ctx context.Context, id uuid.UUID) (domain.ChannelConversation, error)
	ListChannelConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]store.ChannelConversationListItem, int, error)
	DeleteChannelConversation(ctx context.Context, id, userID uuid.UUID) error
	AllMessages(ctx context.Context, column string, id uuid.UUID) ([]domain.Message, error)
}

// Channel implements the channel-scoped half of the table in spec §4.2.
type Channel struct {
	store ChannelStore
}

// NewChannel builds a Channel conversation service over store.
func NewChannel(s ChannelStore) *Channel {
	return &Channel{store: s}
}

// List returns a user's channel conversations joined with channel display
// fields, newest-updated first.
func (c *Channel) List(ctx context.Context, userID uuid.UUID, limit, offset int) (ListResult[store.ChannelConversationListItem], error) {
	items, total, err := c.store.ListChannelConversations(ctx, userID, limit, offset)
	if err != nil {
		return ListResult[store.ChannelConversationListItem]{}, fmt.Errorf("convo: list channel: %w", err)
	}
	return ListResult[store.ChannelConversationListItem]{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// GetOrCreate returns the unique (user, channel) conversation row, creating
// it on first contact. The target channel must exist and must not be
// soft-deleted (spec §4.2).
func (c *Channel) GetOrCreate(ctx context.Context, userID, channelID uuid.UUID) (domain.ChannelConversation, error) {
	if _, err := c.store.GetActiveChannel(ctx, channelID); err != nil {
		return domain.ChannelConversation{}, err
	}
	return c.store.GetOrCreateChannelConversation(ctx, userID, channelID)
}

// ChannelDetail is a channel conversation plus every message it holds.
type ChannelDetail struct {
	Conversation domain.ChannelConversation
	Messages     []domain.Message
}

// GetDetail loads a channel conversation and its full message history,
// enforcing ownership.
func (c *Channel) GetDetail(ctx context.Context, id, userID uuid.UUID) (ChannelDetail, error) {
	cc, err := c.store.GetChannelConversation(ctx, id)
	if err != nil {
		return ChannelDetail{}, err
	}
	if cc.UserID != userID {
		return ChannelDetail{}, ErrForbidden
	}
	msgs, err := c.store.AllMessages(ctx, "channel_conversation_id", id)
	if err != nil {
		return ChannelDetail{}, fmt.Errorf("convo: load channel detail: %w", err)
	}
	return ChannelDetail{Conversation: cc, Messages: msgs}, nil
}

// Delete removes a channel conversation, enforcing ownership.
func (c *Channel) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return c.store.DeleteChannelConversation(ctx, id, userID)
}
