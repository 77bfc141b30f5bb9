// SPDX-License-Identifier: MPL-2.0

package runfile

import (
	"github.com/rbberger/bueno/internal/engine"
	"github.com/rbberger/bueno/internal/pipeline"
)

// Plan turns the runfile into the ordered activity list the pipeline
// executes.
//
// With a container runtime and a build spec, the plan opens with one
// container-build activity; the following activities then run the built
// tag (or the runfile's prebuilt image, when both are given). Without a
// container runtime every activity is a bare execution on the host.
func (r *Runfile) Plan() ([]pipeline.Activity, error) {
	// Validate has run at parse time; re-run so a hand-built Runfile cannot
	// bypass it.
	if err := r.Validate(); err != nil {
		return nil, err
	}

	kind := r.RuntimeKind()
	var plan []pipeline.Activity

	image := engine.ImageRef(r.Runtime.Image)
	if kind != engine.KindNone && r.Runtime.Build != nil {
		spec := r.buildSpec()
		plan = append(plan, pipeline.Activity{
			Name:            r.Name + "-image-build",
			Kind:            pipeline.KindContainerBuild,
			Build:           spec,
			PostFingerprint: r.PostFingerprint,
		})
		if image == "" {
			image = engine.ImageRef(spec.Tag)
		}
	}

	for _, act := range r.Activities {
		timeout, err := act.ParsedTimeout()
		if err != nil {
			return nil, err
		}
		mounts, err := act.ParsedMounts()
		if err != nil {
			return nil, err
		}

		pa := pipeline.Activity{
			Name:            act.Name,
			Argv:            act.Argv(),
			WorkDir:         act.WorkDir,
			Env:             act.Env,
			Timeout:         timeout,
			Echo:            act.Echo,
			PostFingerprint: r.PostFingerprint,
			Labels:          act.Labels,
		}
		if kind == engine.KindNone {
			pa.Kind = pipeline.KindBareExecution
		} else {
			pa.Kind = pipeline.KindContainerRun
			pa.Image = image
			pa.Mounts = mounts
		}
		plan = append(plan, pa)
	}

	return plan, nil
}

func (r *Runfile) buildSpec() *engine.BuildSpec {
	b := r.Runtime.Build
	return &engine.BuildSpec{
		ContextDir:    b.Context,
		Containerfile: b.Containerfile,
		Tag:           b.Tag,
		BuildArgs:     b.Args,
		NoCache:       b.NoCache,
	}
}
