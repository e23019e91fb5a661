//go:build mage

package main

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type pkgLines struct {
	prod, test int
}

// Stats prints Go lines of code per directory, split into production and tests.
func Stats() error {
	byDir := map[string]*pkgLines{}

	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path == "vendor" || path == ".git" || path == binaryDir || strings.HasPrefix(path, "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasPrefix(path, "magefiles") {
			return nil
		}
		count, countErr := countLines(path)
		if countErr != nil {
			return nil
		}
		dir := filepath.Dir(path)
		if byDir[dir] == nil {
			byDir[dir] = &pkgLines{}
		}
		if strings.HasSuffix(path, "_test.go") {
			byDir[dir].test += count
		} else {
			byDir[dir].prod += count
		}
		return nil
	})
	if err != nil {
		return err
	}

	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	var total pkgLines
	for _, dir := range dirs {
		l := byDir[dir]
		fmt.Printf("%-28s prod %6d  test %6d\n", dir, l.prod, l.test)
		total.prod += l.prod
		total.test += l.test
	}
	fmt.Printf("%-28s prod %6d  test %6d\n", "total", total.prod, total.test)
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
