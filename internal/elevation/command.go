package elevation

import (
	"fmt"
	"strings"
)

// Helper invocation constants. The helper runs PowerShell with no
// interactive profile, an unrestricted execution policy, and a hidden
// window; the mutation instruction is passed as the final -Command
// argument.
const (
	HelperBinary = "powershell.exe"
	registryHive = "HKLM:"
)

// HelperArgs returns the fixed helper flags followed by the instruction.
func HelperArgs(script string) []string {
	return []string{
		"-NoProfile",
		"-ExecutionPolicy", "Bypass",
		"-WindowStyle", "Hidden",
		"-Command", script,
	}
}

// QuoteValue escapes a value for embedding inside a single-quoted
// PowerShell string literal by doubling embedded quote characters.
func QuoteValue(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// writeResultBlock emits the trailing script section that serialises
// the {success, message} object to the result artifact as UTF-8 JSON.
func writeResultBlock(resultPath string) string {
	return fmt.Sprintf(
		"$out = @{success=$success; message=$message} | ConvertTo-Json -Compress; "+
			"[System.IO.File]::WriteAllText('%s', $out, (New-Object System.Text.UTF8Encoding $true))",
		QuoteValue(resultPath),
	)
}

// BuildSetScript builds the helper instruction for a single power-flag
// write. The script performs the write, then writes the result artifact
// before exiting.
func BuildSetScript(keyPath, valueName string, value uint32, resultPath string) string {
	var b strings.Builder
	b.WriteString("$ErrorActionPreference = 'Stop'; ")
	fmt.Fprintf(&b,
		"try { Set-ItemProperty -Path '%s\\%s' -Name '%s' -Value %d -Type DWord; "+
			"$success = $true; $message = 'Value updated' } "+
			"catch { $success = $false; $message = $_.Exception.Message }; ",
		registryHive, QuoteValue(keyPath), QuoteValue(valueName), value,
	)
	b.WriteString(writeResultBlock(resultPath))
	return b.String()
}

// BuildDisableAllScript builds the helper instruction that re-enumerates
// every device parameters node under root and writes 0 to its power
// flag, best-effort. The walk runs inside the elevated helper, so it
// reaches subtrees the controlling process could not even list. The
// result message reports the processed and failed counts.
func BuildDisableAllScript(root, valueName, resultPath string) string {
	var b strings.Builder
	b.WriteString("$ErrorActionPreference = 'Continue'; $failed = 0; $total = 0; ")
	fmt.Fprintf(&b,
		"Get-ChildItem -Path '%s\\%s' -Recurse -ErrorAction SilentlyContinue | "+
			"Where-Object { $_.PSChildName -eq 'Device Parameters' } | "+
			"ForEach-Object { $total++; "+
			"try { Set-ItemProperty -Path $_.PSPath -Name '%s' -Value 0 -Type DWord -ErrorAction Stop } "+
			"catch { $failed++ } }; ",
		registryHive, QuoteValue(root), QuoteValue(valueName),
	)
	b.WriteString(
		"$success = ($failed -eq 0); " +
			"$message = \"Processed $total entries; failures $failed\"; ",
	)
	b.WriteString(writeResultBlock(resultPath))
	return b.String()
}
