package files

import (
	"fmt"
	"os"
	"strings"

	"github.com/goplus/llarhub/recipe"
	"github.com/google/renameio"
	"go.uber.org/zap"
)

// ReplaceInFile replaces every occurrence of search in the file. In
// strict mode a missing file or search string is an error; otherwise it
// is logged as a warning and the file is left alone. A dry run has no
// sources, so a missing file is skipped in both modes.
func ReplaceInFile(c *recipe.Context, file, search, replace string, strict bool) error {
	log := c.Logger()
	b, err := os.ReadFile(file)
	if err != nil {
		if c.DryRun && os.IsNotExist(err) {
			log.Info("replace_in_file: dry run, file not patched", zap.String("file", file))
			return nil
		}
		if !strict && os.IsNotExist(err) {
			log.Warn("replace_in_file: file not found", zap.String("file", file))
			return nil
		}
		return err
	}
	content := string(b)
	if !strings.Contains(content, search) {
		if strict {
			return fmt.Errorf("replace_in_file: %q not found in %s", search, file)
		}
		log.Warn("replace_in_file: pattern not found", zap.String("file", file), zap.String("search", search))
		return nil
	}
	info, err := os.Stat(file)
	if err != nil {
		return err
	}
	content = strings.ReplaceAll(content, search, replace)
	return renameio.WriteFile(file, []byte(content), info.Mode().Perm())
}
