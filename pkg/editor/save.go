package editor

import (
	"fmt"
	"os"
	"strings"
	"syscall"
)

// Save writes the Context's buffer transactionally: write to
// "<name>.cf-after-edit", rename the original to "<name>.cf-before-edit",
// then rename the new file into place. Permissions, owner and group are
// restored from the pre-edit stat. If any step fails the original remains
// in place (§4.9). Save is a no-op (returns false, nil) if NumEdits is
// zero, matching the "writing only happens once per context at
// finalisation" contract and avoiding unnecessary mtime churn.
func (c *Context) Save() (wrote bool, err error) {
	if c.NumEdits == 0 {
		return false, nil
	}

	content := strings.Join(c.Lines, "\n")
	if len(c.Lines) > 0 {
		content += "\n"
	}

	afterEdit := c.Filename + ".cf-after-edit"
	beforeEdit := c.Filename + ".cf-before-edit"

	var mode os.FileMode = 0644
	var uid, gid int = -1, -1
	hadOriginal := false
	if info, statErr := os.Stat(c.Filename); statErr == nil {
		hadOriginal = true
		mode = info.Mode().Perm()
		if sys, ok := info.Sys().(*syscall.Stat_t); ok {
			uid = int(sys.Uid)
			gid = int(sys.Gid)
		}
	}

	if err := os.WriteFile(afterEdit, []byte(content), mode); err != nil {
		return false, fmt.Errorf("editor: write %s: %w", afterEdit, err)
	}
	if uid >= 0 && gid >= 0 {
		_ = os.Chown(afterEdit, uid, gid)
	}

	if hadOriginal {
		if err := os.Rename(c.Filename, beforeEdit); err != nil {
			_ = os.Remove(afterEdit)
			return false, fmt.Errorf("editor: backup rename %s: %w", c.Filename, err)
		}
	}

	if err := os.Rename(afterEdit, c.Filename); err != nil {
		// best-effort restore of the original so the file is never left
		// missing if the final rename fails.
		if hadOriginal {
			_ = os.Rename(beforeEdit, c.Filename)
		}
		return false, fmt.Errorf("editor: finalise rename %s: %w", c.Filename, err)
	}

	return true, nil
}
