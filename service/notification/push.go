package notification

import (
	"fmt"
	"log"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"gorm.io/gorm"

	"github.com/mindwell-app/mindwell-server/cmd/models"
)

// PushSender fans a message out to every Expo device a user has registered.
type PushSender struct {
	db     *gorm.DB
	client *expo.PushClient
}

func NewPushSender(db *gorm.DB) *PushSender {
	return &PushSender{
		db:     db,
		client: expo.NewPushClient(nil),
	}
}

// PushToUser sends to all of the user's devices. Invalid tokens are pruned
// from the registry rather than reported.
func (p *PushSender) PushToUser(userID uint, title, body string, data map[string]string) error {
	var devices []models.Device
	if err := p.db.Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		return err
	}
	if len(devices) == 0 {
		return nil
	}

	var validTokens []expo.ExponentPushToken
	var invalidTokens []string
	for _, device := range devices {
		pushToken, err := expo.NewExponentPushToken(device.Token)
		if err != nil {
			invalidTokens = append(invalidTokens, device.Token)
			continue
		}
		validTokens = append(validTokens, pushToken)
	}

	if len(invalidTokens) > 0 {
		if err := p.db.Where("token IN ?", invalidTokens).Delete(&models.Device{}).Error; err != nil {
			log.Printf("Error pruning invalid push tokens: %v", err)
		}
	}

	if len(validTokens) == 0 {
		return fmt.Errorf("no valid push tokens for user %d", userID)
	}

	response, err := p.client.Publish(&expo.PushMessage{
		To:       validTokens,
		Title:    title,
		Body:     body,
		Sound:    "default",
		Priority: expo.DefaultPriority,
		Data:     data,
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification: %v", err)
	}
	if validationErr := response.ValidateResponse(); validationErr != nil {
		return fmt.Errorf("notification validation failed: %v", validationErr)
	}
	return nil
}
