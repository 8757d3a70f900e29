// Package config loads the deployment settings from ozzy.toml and the
// PROXMOX_* environment, falling back to defaults when neither is present.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
)

type proxmoxConfig struct {
	Host         string `toml:"host"`
	User         string `toml:"user"`
	VMID         int    `toml:"vmid"`
	WorkDir      string `toml:"workdir"`
	InstallerISO string `toml:"installer_iso"`
}

type File struct {
	Proxmox *proxmoxConfig `toml:"proxmox"`
}

// Deploy is the effective deployment configuration after file, environment
// and defaults are folded together.
type Deploy struct {
	Host         string
	User         string
	VMID         int
	WorkDir      string
	InstallerISO string
}

// DefaultPath is resolved relative to the project root.
const DefaultPath = "ozzy.toml"

// Load reads file, applies PROXMOX_* environment overrides and returns the
// effective deployment configuration. A missing file is not an error.
func Load(file string) (*Deploy, error) {
	deploy := &Deploy{
		Host:         "10.0.1.10",
		User:         "root",
		VMID:         100,
		WorkDir:      "/root/workspace",
		InstallerISO: "Sequoia.iso",
	}

	var parsed File
	_, err := toml.DecodeFile(file, &parsed)
	if err != nil {
		// A non-existing config isn't an error, use defaults in this case.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("cannot parse %s: %v", file, err)
		}
		logrus.Infof("Configuration file %s not found, using defaults", file)
	}

	if parsed.Proxmox != nil {
		p := parsed.Proxmox
		if p.Host != "" {
			deploy.Host = p.Host
		}
		if p.User != "" {
			deploy.User = p.User
		}
		if p.VMID != 0 {
			deploy.VMID = p.VMID
		}
		if p.WorkDir != "" {
			deploy.WorkDir = p.WorkDir
		}
		if p.InstallerISO != "" {
			deploy.InstallerISO = p.InstallerISO
		}
	}

	if err := applyEnv(deploy); err != nil {
		return nil, err
	}

	if deploy.VMID <= 0 {
		return nil, fmt.Errorf("invalid Proxmox VM id: %d", deploy.VMID)
	}

	return deploy, nil
}

func applyEnv(deploy *Deploy) error {
	if v := os.Getenv("PROXMOX_HOST"); v != "" {
		deploy.Host = v
	}
	if v := os.Getenv("PROXMOX_USER"); v != "" {
		deploy.User = v
	}
	if v := os.Getenv("PROXMOX_VMID"); v != "" {
		vmid, err := strconv.Atoi(v)
		if err != nil || vmid <= 0 {
			return fmt.Errorf("invalid PROXMOX_VMID: %q", v)
		}
		deploy.VMID = vmid
	}
	if v := os.Getenv("PROXMOX_WORKDIR"); v != "" {
		deploy.WorkDir = v
	}
	if v := os.Getenv("PROXMOX_INSTALLER_ISO"); v != "" {
		deploy.InstallerISO = v
	}
	return nil
}
