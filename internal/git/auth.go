package git

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	appcfg "git.home.luguber.info/inful/autobuild/internal/config"
	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
)

// getAuth returns a go-git AuthMethod for the configured credentials.
func getAuth(a *appcfg.AuthConfig) (transport.AuthMethod, error) {
	switch a.Type {
	case appcfg.AuthTypeNone, "":
		return nil, nil
	case appcfg.AuthTypeToken:
		if a.Token == "" {
			return nil, authConfigError(a.Type, "token authentication requires a token")
		}
		// Most hosting services accept any username with a token password.
		return &http.BasicAuth{Username: "token", Password: a.Token}, nil
	case appcfg.AuthTypeBasic:
		if a.Username == "" || a.Password == "" {
			return nil, authConfigError(a.Type, "basic authentication requires username and password")
		}
		return &http.BasicAuth{Username: a.Username, Password: a.Password}, nil
	case appcfg.AuthTypeSSH:
		keyPath := a.KeyPath
		if keyPath == "" {
			keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		}
		keys, err := ssh.NewPublicKeysFromFile("git", keyPath, a.Password)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryAuth, fmt.Sprintf("failed to load SSH key from %s", keyPath)).
				WithContext("key_path", keyPath).
				Build()
		}
		return keys, nil
	default:
		return nil, authConfigError(a.Type, fmt.Sprintf("unsupported authentication type: %s", a.Type))
	}
}

func authConfigError(t appcfg.AuthType, msg string) error {
	return ferrors.AuthError(msg).WithContext("type", string(t)).Build()
}
