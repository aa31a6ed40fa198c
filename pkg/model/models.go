package model

import "github.com/ServiceWeaver/weaver"

const RoleAdmin = "admin"

// User is the directory record for an account. UID is the external
// identity (what the auth layer hands us), ID is the internal id every
// other collection references.
type User struct {
	weaver.AutoMarshal
	ID       int64   `bson:"user_id" json:"user_id"`
	UID      string  `bson:"uid" json:"uid"`
	Role     string  `bson:"role" json:"role"`
	Name     string  `bson:"name" json:"name"`
	Username string  `bson:"username" json:"username"`
	Email    string  `bson:"email" json:"email"`
	Profile  string  `bson:"profile" json:"profile"`
	Friends  []int64 `bson:"friends" json:"friends"`
}

// UserSummary is the projection embedded into expanded post reads.
type UserSummary struct {
	weaver.AutoMarshal
	ID       int64  `bson:"user_id" json:"user_id"`
	UID      string `bson:"uid" json:"uid"`
	Name     string `bson:"name" json:"name"`
	Username string `bson:"username" json:"username"`
	Profile  string `bson:"profile" json:"profile"`
}

func (u User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		UID:      u.UID,
		Name:     u.Name,
		Username: u.Username,
		Profile:  u.Profile,
	}
}

// Attachment is a media-host upload descriptor. Attachments are fixed at
// post creation, the edit path never touches them.
type Attachment struct {
	weaver.AutoMarshal
	URL          string `bson:"url" json:"url"`
	SecureURL    string `bson:"secure_url" json:"secure_url"`
	PublicID     string `bson:"public_id" json:"public_id"`
	ResourceType string `bson:"resource_type" json:"resource_type"`
	Format       string `bson:"format" json:"format"`
	Bytes        int64  `bson:"bytes" json:"bytes"`
}

// Reports is the embedded moderation aggregate: four parallel sequences
// of equal length, one slot per reporter. A reporter appears at most once.
type Reports struct {
	weaver.AutoMarshal
	Reporters   []int64  `bson:"reporters" json:"reporters"`
	ReportTypes []string `bson:"report_types" json:"report_types"`
	Comments    []string `bson:"comments" json:"comments"`
	ReportNum   int      `bson:"report_num" json:"report_num"`
}

func EmptyReports() Reports {
	return Reports{
		Reporters:   []int64{},
		ReportTypes: []string{},
		Comments:    []string{},
		ReportNum:   0,
	}
}

// Post is the stored post document. The SenderName/SenderUsername/
// SenderProfile fields are a snapshot taken at creation time and are not
// kept in sync with the directory. SenderInfo is only populated on
// expanded reads and is never persisted.
type Post struct {
	weaver.AutoMarshal
	PostID         int64        `bson:"post_id" json:"post_id"`
	Sender         int64        `bson:"sender" json:"sender"`
	SenderName     string       `bson:"sender_name" json:"sender_name"`
	SenderUsername string       `bson:"sender_username" json:"sender_username"`
	SenderProfile  string       `bson:"sender_profile" json:"sender_profile"`
	Text           string       `bson:"text" json:"text"`
	Attachments    []Attachment `bson:"attachments" json:"attachments"`
	IsPrivate      bool         `bson:"is_private" json:"is_private"`
	Likes          []int64      `bson:"likes" json:"likes"`
	Comments       []int64      `bson:"comments" json:"comments"`
	Reports        Reports      `bson:"reports" json:"reports"`
	CreatedAt      int64        `bson:"created_at" json:"created_at"`
	UpdatedAt      int64        `bson:"updated_at" json:"updated_at"`
	SenderInfo     UserSummary  `bson:"-" json:"sender_info"`
}

// PostEdit carries the mutable fields of an edit request. HasText
// distinguishes "leave the text alone" from "set it to the empty string".
type PostEdit struct {
	weaver.AutoMarshal
	Text            string `json:"text"`
	HasText         bool   `json:"has_text"`
	IsPrivate       bool   `json:"is_private"`
	TouchTimestamps bool   `json:"touch_timestamps"`
}

// Comment is owned by the comment collaborator; posts only hold ids.
type Comment struct {
	weaver.AutoMarshal
	CommentID int64  `bson:"comment_id" json:"comment_id"`
	PostID    int64  `bson:"post_id" json:"post_id"`
	Sender    int64  `bson:"sender" json:"sender"`
	Text      string `bson:"text" json:"text"`
	CreatedAt int64  `bson:"created_at" json:"created_at"`
}

// PostIndexDoc is the denormalized document mirrored into the search
// index at creation time.
type PostIndexDoc struct {
	weaver.AutoMarshal
	UID            string `json:"uid"`
	Text           string `json:"text"`
	IsPrivate      bool   `json:"is_private"`
	SenderUsername string `json:"sender_username"`
	SenderName     string `json:"sender_name"`
	CreatedAt      string `json:"created_at"`
}

// PostIndexPatch is the partial document applied on edits.
type PostIndexPatch struct {
	weaver.AutoMarshal
	Text      string `json:"text,omitempty"`
	HasText   bool   `json:"-"`
	IsPrivate bool   `json:"is_private"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// NotificationPayload is what a recipient eventually sees.
type NotificationPayload struct {
	weaver.AutoMarshal
	Type  string `bson:"type" json:"type"`
	Title string `bson:"title" json:"title"`
	Body  string `bson:"body" json:"body"`
	Link  string `bson:"link" json:"link"`
}

const (
	NotificationNewPost   = "new-post"
	NotificationPostLiked = "post-liked"
	NotificationSystem    = "system"
)
