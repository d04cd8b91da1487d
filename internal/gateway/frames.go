// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gateway

import "github.com/tubechat/tubechat/internal/domain"

// ErrorCode is the client-visible error taxonomy from spec §7, carried as
// a Go type rather than loose strings so every call site that produces an
// error frame is restricted to one of these constants.
type ErrorCode string

const (
	ErrUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrForbidden       ErrorCode = "FORBIDDEN"
	ErrNotFound        ErrorCode = "NOT_FOUND"
	ErrRateLimit       ErrorCode = "RATE_LIMIT"
	ErrInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrBusy            ErrorCode = "CONVERSATION_BUSY"
	ErrExternalAPI     ErrorCode = "EXTERNAL_API_ERROR"
	ErrInternal        ErrorCode = "INTERNAL"
)

// StatusStep names a pipeline node for the outbound status frame (spec
// §4.1: "status {step ∈ {routing, retrieving, grading, generating,
// ingesting}}").
type StatusStep string

const (
	StepRouting    StatusStep = "routing"
	StepRetrieving StatusStep = "retrieving"
	StepGrading    StatusStep = "grading"
	StepGenerating StatusStep = "generating"
	StepIngesting  StatusStep = "ingesting"
)

// InboundFrame is the one inbound shape a channel accepts mid-session
// (spec §4.1): {conversation_id?: id|"new", content}.
type InboundFrame struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content"`
}

// OutboundFrame is the discriminated union of every frame the gateway may
// emit. Only the fields relevant to Type are populated; the rest are left
// at their zero value and omitted by the json tags.
type OutboundFrame struct {
	Type string `json:"type"`

	// status
	Step    StatusStep `json:"step,omitempty"`
	Message string     `json:"message,omitempty"`

	// message
	Role           string                  `json:"role,omitempty"`
	Content        string                  `json:"content,omitempty"`
	Metadata       *domain.MessageMetadata `json:"metadata,omitempty"`
	ConversationID string                  `json:"conversation_id,omitempty"`

	// video_load_confirmation / video_load_status
	YoutubeURL string `json:"youtube_url,omitempty"`
	VideoID    string `json:"video_id,omitempty"`
	VideoTitle string `json:"video_title,omitempty"`
	Status     string `json:"status,omitempty"`

	// error
	Code  ErrorCode `json:"code,omitempty"`
	Error string    `json:"error,omitempty"`
}

// StatusFrame reports a pipeline node being entered.
func StatusFrame(step StatusStep) OutboundFrame {
	return OutboundFrame{Type: "status", Step: step}
}

// MessageFrame is the terminal frame for a successful turn.
func MessageFrame(conversationID string, content string, metadata domain.MessageMetadata) OutboundFrame {
	return OutboundFrame{
		Type:           "message",
		Role:           "assistant",
		Content:        content,
		Metadata:       &metadata,
		ConversationID: conversationID,
	}
}

// ErrorFrame is terminal for the turn, not for the channel (spec §4.1).
func ErrorFrame(code ErrorCode, message string) OutboundFrame {
	return OutboundFrame{Type: "error", Code: code, Error: message}
}

// VideoLoadConfirmationFrame acknowledges the video_load intent's
// recognized URL before ingestion begins (spec §4.1).
func VideoLoadConfirmationFrame(youtubeURL, videoID string) OutboundFrame {
	return OutboundFrame{Type: "video_load_confirmation", YoutubeURL: youtubeURL, VideoID: videoID}
}

// VideoLoadStatusFrame relays one ingestion progress event.
func VideoLoadStatusFrame(status, videoID, videoTitle, errMsg string) OutboundFrame {
	return OutboundFrame{
		Type:       "video_load_status",
		Status:     status,
		VideoID:    videoID,
		VideoTitle: videoTitle,
		Error:      errMsg,
	}
}
