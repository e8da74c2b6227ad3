package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// 1) Dos "guard if" seguidos con el mismo return => combinables con ||
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	// 2) For anidados: smell útil para refactor/extract
	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)
}

// subprocess keeps every external tool run cancellable by the request context.
func subprocess(m dsl.Matcher) {
	m.Import("os/exec")

	m.Match(`exec.Command($*args)`).
		Report(`exec.Command ignores request cancellation; use exec.CommandContext`).
		Suggest(`exec.CommandContext(ctx, $args)`)

	m.Match(`$cmd.Run()`, `$cmd.Output()`, `$cmd.CombinedOutput()`).
		Where(m["cmd"].Type.Is(`*exec.Cmd`) && !m.File().PkgPath.Matches(`/internal/domain/defacer$`)).
		Report(`run external tools through defacer.Toolchain so failures are logged and classified`)
}

// workdirs flags temp-dir handling that can leak scans on disk.
func workdirs(m dsl.Matcher) {
	m.Import("io/ioutil")

	m.Match(`ioutil.TempDir($*args)`).
		Report(`use os.MkdirTemp`).
		Suggest(`os.MkdirTemp($args)`)

	m.Match(`os.MkdirTemp($_, $_)`).
		Where(!m.File().Imports("testing") && !m.File().PkgPath.Matches(`/internal/domain/pipeline$`)).
		Report(`per-request directories are created by pipeline.Service; do not stage uploads elsewhere`)
}

// printing keeps stdout clean for the MCP stdio transport.
func printing(m dsl.Matcher) {
	m.Match(`fmt.Println($*_)`, `fmt.Printf($*_)`, `fmt.Print($*_)`).
		Where(!m.File().PkgPath.Matches(`/cmd/`)).
		Report(`write to the command's output or use the package logger; stdout carries MCP frames`)
}
