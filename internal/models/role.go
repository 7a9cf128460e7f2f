package models

import "fmt"

// Role is the closed set of account roles.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
	RoleAdmin   Role = "admin"
)

// Roles lists every valid role, in registration-form order.
var Roles = []Role{RoleStudent, RoleTeacher, RoleParent, RoleAdmin}

// ParseRole validates a role string coming from a form or a session claim.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleTeacher, RoleParent, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("invalid role %q", s)
}

// MessageKind is the closed set of message content kinds.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindVideo MessageKind = "video"
	KindAudio MessageKind = "audio"
)

// ParseMessageKind validates a message_type form value.
func ParseMessageKind(s string) (MessageKind, error) {
	switch MessageKind(s) {
	case KindText, KindImage, KindVideo, KindAudio:
		return MessageKind(s), nil
	}
	return "", fmt.Errorf("invalid message type %q", s)
}
