package driver

import (
	"context"
	"os"

	"github.com/distr1/ccdriver/internal/frontend"
)

// ppOptions builds the preprocessor descriptor every entry point shares
// from args and the front end's collaborators.
func ppOptions(fe *Frontend, args *DriverArgs, diags frontend.DiagnosticSink) frontend.PreprocessorOptions {
	return frontend.PreprocessorOptions{
		Version:       args.Version,
		CaseSensitive: true,
		Includes:      args.Includes,
		Defines:       args.Defines,
		Locator:       fe.Locator,
		FS:            fe.FS,
		Diagnostics:   diags,
	}
}

// runPreprocess constructs a preprocessor from args and runs it over src,
// feeding diagnostics into diags. The caller owns the returned
// preprocessor's lifetime (Finalize) on both the success and error path.
func runPreprocess(ctx context.Context, fe *Frontend, args *DriverArgs, src frontend.Source, diags frontend.DiagnosticSink) (frontend.Preprocessor, *frontend.TokenStream, error) {
	pp := fe.NewPreprocessor(args)
	tokens, err := pp.Run(ctx, src, ppOptions(fe, args, diags))
	return pp, tokens, err
}

// Preprocess runs the preprocessor over the source file at path,
// standalone (outside any build step). On failure the accumulated
// diagnostics are flushed and an error returned. finalize releases the
// preprocessor's intermediate state once the token stream is produced;
// with false, Finalize is skipped on success. The preprocessor itself is
// not returned to the caller.
func Preprocess(ctx context.Context, fe *Frontend, args *DriverArgs, path string, finalize bool) (*frontend.TokenStream, error) {
	return preprocessSource(ctx, fe, args, frontend.Source{Path: path}, finalize)
}

// PreprocessString is Preprocess for an in-memory source text, whether it
// originated as a length-delimited or a NUL-terminated string — Go
// strings collapse the two into this single entry point.
func PreprocessString(ctx context.Context, fe *Frontend, args *DriverArgs, text string, finalize bool) (*frontend.TokenStream, error) {
	return preprocessSource(ctx, fe, args, frontend.Source{Text: text}, finalize)
}

func preprocessSource(ctx context.Context, fe *Frontend, args *DriverArgs, src frontend.Source, finalize bool) (*frontend.TokenStream, error) {
	diags := fe.NewDiagnosticSink()
	pp, tokens, err := runPreprocess(ctx, fe, args, src, diags)
	if err != nil {
		diags.Flush(os.Stderr)
		pp.Finalize()
		return nil, err
	}
	if finalize {
		pp.Finalize()
	}
	return tokens, nil
}
