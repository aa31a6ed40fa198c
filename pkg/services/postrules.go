package services

import (
	"unicode/utf8"

	"socialnet/pkg/errs"
	"socialnet/pkg/model"
	"socialnet/pkg/utils"
)

// Pure authorization and moderation rules. Kept free of I/O so they can
// be checked directly.

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// canDeletePost: admins can always delete, otherwise only the sender.
func canDeletePost(actor model.User, post model.Post) bool {
	return actor.Role == model.RoleAdmin || actor.ID == post.Sender
}

// canEditPost: only the sender may edit. Admins are deliberately not
// granted edit rights, asymmetric with deletion.
func canEditPost(actor model.User, post model.Post) bool {
	return actor.ID == post.Sender
}

// canSeePost: public posts are visible to everyone. A private post is
// visible to its sender, to admins, and to members of the sender's friend
// list.
func canSeePost(actor model.User, post model.Post, senderFriends []int64) bool {
	if !post.IsPrivate {
		return true
	}
	if actor.ID == post.Sender {
		return true
	}
	if actor.Role == model.RoleAdmin {
		return true
	}
	return containsID(senderFriends, actor.ID)
}

// validateSearchQuery trims the query and enforces the two-character
// minimum, counted in runes.
func validateSearchQuery(queryText string) (string, error) {
	trimmed, err := utils.ValidateString(queryText, "search query")
	if err != nil {
		return "", err
	}
	if utf8.RuneCountInString(trimmed) < 2 {
		return "", errs.Validationf("search query must be at least 2 characters long")
	}
	return trimmed, nil
}

// validateReportType checks the tag against the configured set.
func validateReportType(reportType string, allowed []string) error {
	for _, v := range allowed {
		if v == reportType {
			return nil
		}
	}
	return errs.Validationf("report type (%s) doesn't exist", reportType)
}

// crossedThreshold reports whether this report moved the count onto the
// moderation threshold. Each report increments the count by exactly one,
// so equality detects the transition and fires once.
func crossedThreshold(reportNum int, threshold int) bool {
	return reportNum == threshold
}
