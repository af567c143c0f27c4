package config

import (
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/dl-alexandre/collsync/internal/utils"
)

// KeyringService is the service name under which passwords are stored in the
// OS keyring.
const KeyringService = "collsync"

// keyringGet is swappable for tests
var keyringGet = keyring.Get

// ResolveCredentials fills in passwords that are absent from the config file
// by looking them up in the OS keyring under the user's login.
func ResolveCredentials(cfg *Config) error {
	for i := range cfg.Users {
		user := &cfg.Users[i]
		if user.Password != "" {
			continue
		}
		password, err := keyringGet(KeyringService, user.Login)
		if err != nil {
			return utils.NewAppError(utils.ErrCodeConfigInvalid,
				fmt.Sprintf("No password for user %q in config or keyring: %s", user.Login, err)).
				WithContext("login", user.Login).
				Build()
		}
		user.Password = password
	}
	return nil
}
