package defacer

// NewPyDeface runs `pydeface <in> --outfile <out> --force`.
func NewPyDeface(tc *Toolchain) Method {
	return &commandMethod{
		tc:   tc,
		tool: ToolPyDeface,
		argv: func(input, output string) []string {
			return []string{input, "--outfile", output, "--force"}
		},
	}
}
