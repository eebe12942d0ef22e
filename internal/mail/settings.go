package mail

import (
	"log"
	"strconv"
	"strings"

	"github.com/inboxdesk/inboxdesk/internal/config"
	"github.com/inboxdesk/inboxdesk/internal/mail/inbound/connector"
	"github.com/inboxdesk/inboxdesk/internal/repository"
)

// runSettings is the snapshot of mailbox settings one sync run operates
// on. It is resolved at the start of every run, so edits to the
// settings table take effect on the next run without a restart; a run
// never mixes two generations of settings.
type runSettings struct {
	Account           connector.Account
	MaxEmails         int
	AttachmentDir     string
	AttachmentMaxSize int64
}

type settingsReader interface {
	Get(key, def string) (string, error)
}

// resolveRunSettings merges the settings table over the config-file
// defaults. Unparsable stored numbers fall back to the config value
// with a warning rather than failing the run.
func resolveRunSettings(settings settingsReader, mail config.MailConfig, logger *log.Logger) (runSettings, error) {
	host, err := settings.Get(repository.SettingIMAPServer, mail.IMAPHost)
	if err != nil {
		return runSettings{}, err
	}
	username, err := settings.Get(repository.SettingIMAPUsername, mail.IMAPUsername)
	if err != nil {
		return runSettings{}, err
	}
	password, err := settings.Get(repository.SettingIMAPPassword, mail.IMAPPassword)
	if err != nil {
		return runSettings{}, err
	}
	folder, err := settings.Get(repository.SettingIMAPFolder, mail.IMAPFolder)
	if err != nil {
		return runSettings{}, err
	}
	attachmentDir, err := settings.Get(repository.SettingAttachmentPath, mail.AttachmentDir)
	if err != nil {
		return runSettings{}, err
	}

	port, err := getInt(settings, repository.SettingIMAPPort, mail.IMAPPort, logger)
	if err != nil {
		return runSettings{}, err
	}
	maxEmails, err := getInt(settings, repository.SettingMaxEmailsPerSync, mail.MaxEmailsPerSync, logger)
	if err != nil {
		return runSettings{}, err
	}
	maxSize, err := getInt64(settings, repository.SettingAttachmentMaxSize, mail.AttachmentMaxSize, logger)
	if err != nil {
		return runSettings{}, err
	}
	useSSL, err := getBool(settings, repository.SettingIMAPUseSSL, mail.IMAPUseSSL, logger)
	if err != nil {
		return runSettings{}, err
	}

	return runSettings{
		Account: connector.Account{
			Host:     host,
			Port:     port,
			Username: username,
			Password: password,
			UseSSL:   useSSL,
			Folder:   folder,
		},
		MaxEmails:         maxEmails,
		AttachmentDir:     attachmentDir,
		AttachmentMaxSize: maxSize,
	}, nil
}

func getInt(settings settingsReader, key string, def int, logger *log.Logger) (int, error) {
	raw, err := settings.Get(key, strconv.Itoa(def))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		logger.Printf("settings: %s=%q is not a number, using %d", key, raw, def)
		return def, nil
	}
	return n, nil
}

func getInt64(settings settingsReader, key string, def int64, logger *log.Logger) (int64, error) {
	raw, err := settings.Get(key, strconv.FormatInt(def, 10))
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		logger.Printf("settings: %s=%q is not a number, using %d", key, raw, def)
		return def, nil
	}
	return n, nil
}

func getBool(settings settingsReader, key string, def bool, logger *log.Logger) (bool, error) {
	raw, err := settings.Get(key, strconv.FormatBool(def))
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		logger.Printf("settings: %s=%q is not a boolean, using %t", key, raw, def)
		return def, nil
	}
	return b, nil
}

// defaultSettings seeds the settings table from the config file on
// first boot so the stored values are visible and editable afterwards.
func defaultSettings(mail config.MailConfig) map[string]string {
	return map[string]string{
		repository.SettingIMAPServer:        mail.IMAPHost,
		repository.SettingIMAPPort:          strconv.Itoa(mail.IMAPPort),
		repository.SettingIMAPUsername:      mail.IMAPUsername,
		repository.SettingIMAPPassword:      mail.IMAPPassword,
		repository.SettingIMAPUseSSL:        strconv.FormatBool(mail.IMAPUseSSL),
		repository.SettingIMAPFolder:        mail.IMAPFolder,
		repository.SettingMaxEmailsPerSync:  strconv.Itoa(mail.MaxEmailsPerSync),
		repository.SettingAttachmentPath:    mail.AttachmentDir,
		repository.SettingAttachmentMaxSize: strconv.FormatInt(mail.AttachmentMaxSize, 10),
	}
}
