package services

import (
	"context"

	"socialnet/pkg/errs"
	"socialnet/pkg/model"

	"github.com/ServiceWeaver/weaver"
)

// MediaService validates attachment descriptors against the media-host
// object shape. Upload and storage mechanics live outside this system.
type MediaService interface {
	ValidateAttachments(ctx context.Context, attachments []model.Attachment) error
}

type mediaServiceOptions struct {
	Region string `toml:"region"`
}

type mediaService struct {
	weaver.Implements[MediaService]
	weaver.WithConfig[mediaServiceOptions]
}

func (m *mediaService) Init(ctx context.Context) error {
	logger := m.Logger(ctx)
	logger.Info("media service running!", "region", m.Config().Region)
	return nil
}

func validateAttachment(attachment model.Attachment) error {
	if attachment.URL == "" {
		return errs.Validationf("attachment is missing its url")
	}
	if attachment.SecureURL == "" {
		return errs.Validationf("attachment is missing its secure url")
	}
	if attachment.PublicID == "" {
		return errs.Validationf("attachment is missing its public id")
	}
	if attachment.ResourceType == "" {
		return errs.Validationf("attachment is missing its resource type")
	}
	if attachment.Format == "" {
		return errs.Validationf("attachment is missing its format")
	}
	if attachment.Bytes <= 0 {
		return errs.Validationf("attachment has a non-positive byte size")
	}
	return nil
}

// ValidateAttachments rejects the whole batch when any entry is invalid;
// partial acceptance is disallowed.
func (m *mediaService) ValidateAttachments(ctx context.Context, attachments []model.Attachment) error {
	logger := m.Logger(ctx)
	logger.Debug("entering ValidateAttachments", "num_attachments", len(attachments))

	for _, attachment := range attachments {
		if err := validateAttachment(attachment); err != nil {
			return err
		}
	}
	return nil
}
