package defacer

// NewMRIDeface runs FreeSurfer's `mri_deface <in> <out>`.
func NewMRIDeface(tc *Toolchain) Method {
	return &commandMethod{
		tc:   tc,
		tool: ToolMRIDeface,
		argv: func(input, output string) []string {
			return []string{input, output}
		},
	}
}
