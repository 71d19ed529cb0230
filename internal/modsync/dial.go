package modsync

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/example/modengine-overrides/internal/config"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type sftpRemote struct {
	client *sftp.Client
	conn   *ssh.Client
}

func (r *sftpRemote) Stat(p string) (os.FileInfo, error) { return r.client.Stat(p) }

func (r *sftpRemote) ReadDir(p string) ([]os.FileInfo, error) { return r.client.ReadDir(p) }

func (r *sftpRemote) Open(p string) (io.ReadCloser, error) { return r.client.Open(p) }

func (r *sftpRemote) Close() error {
	err := r.client.Close()
	if cerr := r.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

func dialSFTP(rr config.RemoteRootConfig) (remote, error) {
	auth, err := authMethod(rr.Auth)
	if err != nil {
		return nil, err
	}
	hostKey := ssh.InsecureIgnoreHostKey()
	if rr.KnownHostsPath != "" {
		hostKey, err = knownhosts.New(rr.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
	}
	sshConfig := &ssh.ClientConfig{
		User:            rr.User,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKey,
	}
	addr := net.JoinHostPort(rr.Host, strconv.Itoa(rr.Port))
	sshConn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, err
	}
	client, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, err
	}
	return &sftpRemote{client: client, conn: sshConn}, nil
}

func authMethod(auth config.SFTPAuthConfig) (ssh.AuthMethod, error) {
	switch auth.Type {
	case "password":
		return ssh.Password(auth.Password), nil
	case "private_key":
		key, err := os.ReadFile(auth.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		var signer ssh.Signer
		if auth.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(auth.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return ssh.PublicKeys(signer), nil
	default:
		return nil, fmt.Errorf("unsupported sftp auth type %q", auth.Type)
	}
}
