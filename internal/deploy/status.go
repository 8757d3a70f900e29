package deploy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ozzy-project/ozzy/internal/common"
)

// Status writes a project overview: target, built artifacts, known
// changesets, recent deployments, and whether the VM is up.
func (p *Proxmox) Status(w io.Writer) error {
	fmt.Fprintf(w, "Project:  %s\n", p.Paths.Root)
	fmt.Fprintf(w, "Target:   %s (VM %d)\n", p.target(), p.Config.VMID)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Artifacts:")
	for _, artifact := range []string{
		p.Paths.BuiltConfig,
		p.Paths.OpenCoreISO,
		p.Paths.USBEFI,
		p.Paths.AMDPatches,
	} {
		mark := "✗"
		if _, err := os.Stat(artifact); err == nil {
			mark = "✓"
		}
		name := artifact
		if rel, err := filepath.Rel(p.Paths.Root, artifact); err == nil {
			name = rel
		}
		fmt.Fprintf(w, "  %s %s\n", mark, name)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Changesets:")
	names, err := common.NewestChangesets(p.Paths.Changesets, 0)
	if err != nil || len(names) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", name)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Recent deployments:")
	records, err := History(p.Paths)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, record := range records {
		if i == 5 {
			break
		}
		fmt.Fprintf(w, "  %s  %s -> VM %d (%s)\n",
			record.Time.Local().Format("2006-01-02 15:04"),
			record.Changeset, record.VMID, record.Outcome)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "VM status: %s\n", p.vmStatus())
	return nil
}

func (p *Proxmox) vmStatus() string {
	out, err := p.run("ssh", "-o", "ConnectTimeout=5", p.target(),
		"qm", "status", strconv.Itoa(p.Config.VMID))
	if err != nil {
		return "unreachable"
	}
	if status := infoField(out, "status"); status != "" {
		return status
	}
	return strings.TrimSpace(out)
}
