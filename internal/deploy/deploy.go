// Package deploy ships built boot media to its destination: a Proxmox
// host over ssh, or the EFI partition of a macOS install USB. Every
// Proxmox deployment is recorded under out/logs/deployments so "what is
// the VM actually running" has an answer.
package deploy

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"

	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/config"
	"github.com/ozzy-project/ozzy/internal/jsondb"
)

const isoStore = "/var/lib/vz/template/iso"

// Record is one deployment, stored as a JSON file keyed by a ksuid so
// lexical order is chronological order.
type Record struct {
	ID        string    `json:"id"`
	Changeset string    `json:"changeset"`
	Host      string    `json:"host"`
	VMID      int       `json:"vmid"`
	ISO       string    `json:"iso"`
	Time      time.Time `json:"time"`
	Outcome   string    `json:"outcome"`
}

type Options struct {
	// Full attaches the macOS installer ISO alongside the OpenCore ISO,
	// for first-time installs.
	Full bool
}

// Proxmox deploys ISOs to a Proxmox host and drives its VMs with qm
// over ssh.
type Proxmox struct {
	Paths  common.Paths
	Config *config.Deploy

	run func(name string, args ...string) (string, error)
}

func NewProxmox(paths common.Paths, cfg *config.Deploy) *Proxmox {
	return &Proxmox{Paths: paths, Config: cfg, run: common.RunCommand}
}

func (p *Proxmox) target() string {
	return p.Config.User + "@" + p.Config.Host
}

func (p *Proxmox) ssh(args ...string) (string, error) {
	return p.run("ssh", append([]string{p.target()}, args...)...)
}

// Deploy uploads the built ISO, reconfigures the VM per the changeset's
// proxmox section, and starts it. The outcome is recorded either way.
func (p *Proxmox) Deploy(cs changeset.Changeset, name string, opts Options) error {
	isoName := "opencore-" + name + ".iso"
	record := Record{
		Changeset: name,
		Host:      p.Config.Host,
		VMID:      p.vmid(cs),
		ISO:       isoName,
		Time:      time.Now().UTC(),
	}

	err := p.deploy(cs, name, isoName, record.VMID, opts)
	if err != nil {
		record.Outcome = fmt.Sprintf("failed: %v", err)
	} else {
		record.Outcome = "deployed"
	}
	if histErr := p.writeRecord(record); histErr != nil {
		logrus.Warnf("Could not record deployment: %v", histErr)
	}
	return err
}

func (p *Proxmox) deploy(cs changeset.Changeset, name, isoName string, vmid int, opts Options) error {
	if _, err := os.Stat(p.Paths.OpenCoreISO); err != nil {
		return fmt.Errorf("no ISO at %s, run ozzy-build-iso first", p.Paths.OpenCoreISO)
	}

	logrus.Infof("Uploading %s to %s", isoName, p.Config.Host)
	remote := fmt.Sprintf("%s:%s/%s", p.target(), isoStore, isoName)
	if out, err := p.run("scp", p.Paths.OpenCoreISO, remote); err != nil {
		return fmt.Errorf("cannot upload ISO: %v: %s", err, out)
	}

	id := strconv.Itoa(vmid)
	if _, err := p.ssh("qm", "stop", id); err != nil {
		logrus.Warnf("Could not stop VM %d (may not be running)", vmid)
	}

	overrides := p.overrides(cs)
	hasIDE := false
	for _, key := range sortedKeys(overrides) {
		if len(key) >= 3 && key[:3] == "ide" {
			hasIDE = true
		}
		value := fmt.Sprintf("%v", overrides[key])
		if out, err := p.ssh("qm", "set", id, "-"+key, value); err != nil {
			return fmt.Errorf("qm set %s failed: %v: %s", key, err, out)
		}
	}

	if !hasIDE {
		attach := fmt.Sprintf("local:iso/%s,media=disk,cache=unsafe,size=10M", isoName)
		if out, err := p.ssh("qm", "set", id, "-ide0", attach); err != nil {
			return fmt.Errorf("cannot attach ISO: %v: %s", err, out)
		}
	}
	if opts.Full {
		attach := fmt.Sprintf("local:iso/%s,cache=unsafe", p.Config.InstallerISO)
		if out, err := p.ssh("qm", "set", id, "-ide2", attach); err != nil {
			return fmt.Errorf("cannot attach installer ISO: %v: %s", err, out)
		}
	}

	if out, err := p.ssh("qm", "start", id); err != nil {
		return fmt.Errorf("cannot start VM %d: %v: %s", vmid, err, out)
	}
	logrus.Infof("VM %d started with %s", vmid, isoName)
	return nil
}

// vmid prefers the changeset's proxmox section over the configured
// default, so one project can drive several VMs.
func (p *Proxmox) vmid(cs changeset.Changeset) int {
	if dict, ok := changeset.SectionDict(cs, "proxmox"); ok {
		if vmid, ok := toInt(dict["vmid"]); ok && vmid > 0 {
			return vmid
		}
	}
	return p.Config.VMID
}

func (p *Proxmox) overrides(cs changeset.Changeset) map[string]interface{} {
	dict, ok := changeset.SectionDict(cs, "proxmox")
	if !ok {
		return nil
	}
	overrides, ok := dict["overrides"].(map[string]interface{})
	if !ok {
		return nil
	}
	return overrides
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *Proxmox) writeRecord(record Record) error {
	if err := common.EnsureDir(p.Paths.DeployHistory); err != nil {
		return err
	}
	record.ID = ksuid.New().String()
	db := jsondb.New(p.Paths.DeployHistory, 0644)
	return db.Write(record.ID, record)
}

// History returns past deployments, newest first.
func History(paths common.Paths) ([]Record, error) {
	if _, err := os.Stat(paths.DeployHistory); err != nil {
		return nil, nil
	}

	db := jsondb.New(paths.DeployHistory, 0644)
	names, err := db.List()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	records := make([]Record, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		var record Record
		ok, err := db.Read(names[i], &record)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, record)
		}
	}
	return records, nil
}
