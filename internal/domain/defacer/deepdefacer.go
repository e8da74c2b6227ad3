package defacer

// NewDeepDefacer runs `deepdefacer --input_file <in> --defaced_output_path <out>`.
func NewDeepDefacer(tc *Toolchain) Method {
	return &commandMethod{
		tc:   tc,
		tool: ToolDeepDefacer,
		argv: func(input, output string) []string {
			return []string{"--input_file", input, "--defaced_output_path", output}
		},
	}
}
