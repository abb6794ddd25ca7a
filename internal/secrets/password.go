// Package secrets resolves credentials that should not live in the
// config file. Environment first (containers, CI), OS keychain second
// (desktop installs).
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const KeyringService = "scraperbot"

// GetIMAPPassword looks up the mailbox password: IMAP_PASSWORD env var
// first, then the OS keychain under the given account.
func GetIMAPPassword(keyringAccount string) (string, error) {
	if pw := strings.TrimSpace(os.Getenv("IMAP_PASSWORD")); pw != "" {
		return pw, nil
	}

	if strings.TrimSpace(keyringAccount) != "" {
		pw, err := keyring.Get(KeyringService, keyringAccount)
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}

	return "", errors.New("IMAP password not found (set IMAP_PASSWORD or store it in the keychain)")
}

func SetIMAPPassword(keyringAccount string, password string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, password)
}

func DeleteIMAPPassword(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}

// IMAPKeyringAccount builds the stable keychain account name for a
// mailbox login.
func IMAPKeyringAccount(username, host string) string {
	return fmt.Sprintf("scraperbot:imap:%s@%s", username, host)
}

const telegramKeyringAccount = "scraperbot:telegram:bot_token"

// GetTelegramToken is the keychain fallback for the bot token when
// neither config nor TELEGRAM_BOT_TOKEN provides one.
func GetTelegramToken() (string, error) {
	tok, err := keyring.Get(KeyringService, telegramKeyringAccount)
	if err != nil || strings.TrimSpace(tok) == "" {
		return "", errors.New("telegram bot token not found in keychain")
	}
	return tok, nil
}

func SetTelegramToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("token is empty")
	}
	return keyring.Set(KeyringService, telegramKeyringAccount, token)
}
