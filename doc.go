/*
Package hpyharness builds and loads small native extension modules from C
templates, so that tests can exercise an extension API one snippet at a time.

# Concept

A test writes the body of a module as a C template containing directives.
The harness expands the directives into registration tables and a module
init function, compiles the result with an external toolchain and loads
the artifact into a host. Loads are scoped: the host's module table and
search path look the same after MakeModule returns as they did before.

# Directives

Directives occupy a whole line:

  - @EXPORT(sym) appends &sym to the method table.
  - @EXPORT_TYPE("Name", spec) creates a type from spec during init and binds it as Name.
  - @EXPORT_LEGACY(table) sets the legacy methods table.
  - @EXTRA_INIT_FUNC(fn) calls fn(ctx, module) during init.
  - @INIT emits the tables and the init function. Nothing may be added after it.

# Usage

	h, err := hpyharness.New(hpyharness.WithWorkDir(dir))
	if err != nil {
		log.Fatal(err)
	}

	mod, err := h.MakeModule(ctx, `
		HPyDef_METH(f, "f", f_impl, HPyFunc_NOARGS)
		static HPy f_impl(HPyContext *ctx, HPy self)
		{
			return HPy_Dup(ctx, ctx->h_None);
		}
		@EXPORT(f)
		@INIT
	`, "")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(mod.Name) // mytest

The toolchain and host are ports: tests that do not want a C compiler can
inject their own with WithToolchain and WithHost.
*/
package hpyharness
