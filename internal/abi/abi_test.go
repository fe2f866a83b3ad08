package abi

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const header = `#ifndef MERVE_C_H
#define MERVE_C_H
#include <stddef.h>
#include <stdint.h>

typedef struct {
  const char* data;
  size_t length;
} merve_string;

/* Opaque handle. Must be freed with merve_free(). */
typedef void* merve_analysis;

typedef struct {
  int major;
  int minor;
  int revision;
} merve_version_components;

typedef struct {
  uint32_t line;
  uint32_t column;
} merve_error_loc;

merve_analysis merve_parse_commonjs(const char* input, size_t length,
                                    merve_error_loc* out_err);
bool merve_is_valid(merve_analysis result);
void merve_free(merve_analysis result);
size_t merve_get_exports_count(merve_analysis result);
size_t merve_get_reexports_count(merve_analysis result);
merve_string merve_get_export_name(merve_analysis result, size_t index);
uint32_t merve_get_export_line(merve_analysis result, size_t index);
merve_string merve_get_reexport_name(merve_analysis result, size_t index);
uint32_t merve_get_reexport_line(merve_analysis result, size_t index);
int merve_get_last_error(void);
const char* merve_get_version(void);
merve_version_components merve_get_version_components (void);
#endif
`

func TestCheckComplete(t *testing.T) {
	if missing := Check(header, "merve", true); len(missing) != 0 {
		t.Errorf("Check() missing = %v", missing)
	}
}

func TestCheckMissing(t *testing.T) {
	h := strings.Replace(header, "void merve_free(merve_analysis result);", "", 1)
	missing := Check(h, "merve", false)
	if len(missing) != 1 || missing[0].Name != "merve_free" || missing[0].Kind != Function {
		t.Errorf("Check() = %v, want merve_free", missing)
	}
}

func TestCheckIgnoresComments(t *testing.T) {
	h := strings.Replace(header, "int merve_get_last_error(void);", "// int merve_get_last_error(void);", 1)
	missing := Check(h, "merve", false)
	if Names(missing) != "merve_get_last_error" {
		t.Errorf("Check() = %v, commented declaration should not count", missing)
	}
}

func TestErrorLocationType(t *testing.T) {
	h := strings.Replace(header, "} merve_error_loc;", "} merve_location;", 1)
	if missing := Check(h, "merve", false); len(missing) != 0 {
		t.Errorf("Check() without error location = %v", missing)
	}
	missing := Check(h, "merve", true)
	if len(missing) != 1 || missing[0].String() != "type merve_error_loc" {
		t.Errorf("Check() with error location = %v", missing)
	}
}

func TestCheckFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merve_c.h")
	if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
		t.Fatal(err)
	}
	missing, err := CheckFile(path, "merve", true)
	if err != nil || len(missing) != 0 {
		t.Errorf("CheckFile() = %v, %v", missing, err)
	}
	if _, err := CheckFile(filepath.Join(t.TempDir(), "nope.h"), "merve", true); err == nil {
		t.Error("CheckFile() on a missing file succeeded")
	}
}

func TestSurfaceSize(t *testing.T) {
	if n := len(Surface("merve", false)); n != 15 {
		t.Errorf("len(Surface) = %d, want 15", n)
	}
	if n := len(Surface("merve", true)); n != 16 {
		t.Errorf("len(Surface) with error location = %d, want 16", n)
	}
}
