package template

import (
	"fmt"
	"strings"
	"text/template"
)

var skeletonTmpl = template.Must(template.New("skeleton").Parse(`
static HPyDef *moduledefs[] = {
    {{- range .Exports}}
    {{.}}
    {{- end}}
    NULL
};
static HPyModuleDef moduledef = {
    HPyModuleDef_HEAD_INIT,
    .m_name = "{{.Name}}",
    .m_doc = "some test for hpy",
    .m_size = -1,
    .legacy_methods = {{.Legacy}},
    .defines = moduledefs
};

HPy_MODINIT({{.Name}})
static HPy init_{{.Name}}_impl(HPyContext ctx)
{
    HPy m;
    m = HPyModule_Create(ctx, &moduledef);
    if (HPy_IsNull(m))
        return HPy_NULL;
{{.Inits}}
    return m;
}
`))

const typeFragment = `
HPy {{h}} = HPyType_FromSpec(ctx, &{{spec}}, NULL);
if (HPy_IsNull({{h}}))
    return HPy_NULL;
if (HPy_SetAttr_s(ctx, m, {{name}}, {{h}}) != 0)
    return HPy_NULL;
HPy_Close(ctx, {{h}});
`

const extraInitFragment = `
{{func}}(ctx, m);
if (HPyErr_Occurred(ctx))
    return HPy_NULL;
`

// fragmentIndent is the indentation of init fragments inside the init function body.
const fragmentIndent = 4

func renderSkeleton(b *Builder) (string, error) {
	var sb strings.Builder
	err := skeletonTmpl.Execute(&sb, struct {
		Name    string
		Legacy  string
		Exports []string
		Inits   string
	}{
		Name:    b.module,
		Legacy:  b.legacy,
		Exports: b.exports,
		Inits:   strings.Join(b.inits, "\n"),
	})
	if err != nil {
		return "", fmt.Errorf("render skeleton for %q: %w", b.module, err)
	}
	return sb.String(), nil
}

// fillFragment substitutes {{key}} placeholders and indents the result for the init body.
func fillFragment(src string, vars ...string) string {
	out := strings.NewReplacer(vars...).Replace(src)
	return Reindent(out, fragmentIndent)
}
