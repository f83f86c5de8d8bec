package estimate_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/kinest/internal/estim"
	"github.com/san-kum/kinest/internal/estimate"
)

var _ = Describe("Orchestrator", func() {
	var (
		ctx    context.Context
		model  *fakeModel
		solver *fakeSolver
		orch   *estimate.Orchestrator
	)

	BeforeEach(func() {
		ctx = context.Background()
		model = newFakeModel()
		solver = &fakeSolver{}
		orch = &estimate.Orchestrator{}
	})

	expectObjectivesActive := func() {
		for _, obj := range model.Objectives() {
			Expect(obj.Active).To(BeTrue(), "objective %s left inactive", obj.Name)
		}
	}

	Context("when the solve succeeds", func() {
		It("frees only the variable parameters during the solve", func() {
			_, err := orch.SolveWithVariable(ctx, model, solver, []string{"k2"}, estimate.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(solver.seenFree).To(Equal([][]string{{"k2"}}))
		})

		It("deactivates every objective during the solve and reactivates them after", func() {
			_, err := orch.SolveWithVariable(ctx, model, solver, []string{"k2"}, estimate.Options{})
			Expect(err).NotTo(HaveOccurred())
			for _, obj := range solver.seenObjs[0] {
				Expect(obj.Active).To(BeFalse())
			}
			expectObjectivesActive()
		})

		It("holds fixed parameters at the supplied values", func() {
			_, err := orch.SolveWithVariable(ctx, model, solver, []string{"k2"}, estimate.Options{
				FixedValues: map[string]float64{"k1": 5},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(solver.seenVals[0]["k1"]).To(Equal(5.0))
			Expect(solver.seenVals[0]["k3"]).To(Equal(3.0))
		})

		It("restores non-variable parameters and keeps the solved values", func() {
			res, err := orch.SolveWithVariable(ctx, model, solver, []string{"k2"}, estimate.Options{
				FixedValues: map[string]float64{"k1": 5},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.P).To(HaveKeyWithValue("k2", 42.0))

			ps := model.Parameters()
			Expect(ps.Values()).To(Equal(map[string]float64{"k1": 1, "k2": 42, "k3": 3, "k4": 0.3}))
			Expect(ps.FixedFlags()).To(Equal(map[string]bool{"k1": false, "k2": false, "k3": false, "k4": true}))
		})

		It("restores variable values when asked", func() {
			_, err := orch.SolveWithVariable(ctx, model, solver, []string{"k2", "k4"}, estimate.Options{RestoreValues: true})
			Expect(err).NotTo(HaveOccurred())

			ps := model.Parameters()
			Expect(ps.Values()).To(Equal(map[string]float64{"k1": 1, "k2": 2, "k3": 3, "k4": 0.3}))
			k4, _ := ps.Get("k4")
			Expect(k4.Fixed).To(BeFalse())
		})
	})

	Context("when the solver fails", func() {
		It("wraps the error and restores the model", func() {
			cause := errors.New("infeasible")
			solver.err = cause

			_, err := orch.SolveWithVariable(ctx, model, solver, []string{"k1"}, estimate.Options{})
			Expect(err).To(MatchError(estim.ErrSolver))
			Expect(errors.Is(err, cause)).To(BeTrue())

			Expect(model.Parameters().FixedFlags()).To(Equal(newFakeModel().ps.FixedFlags()))
			Expect(model.Parameters().Values()).To(Equal(newFakeModel().ps.Values()))
			expectObjectivesActive()
		})
	})

	Context("when the solver panics", func() {
		It("restores the model before propagating the panic", func() {
			solver.panics = true

			Expect(func() {
				_, _ = orch.SolveWithVariable(ctx, model, solver, []string{"k1"}, estimate.Options{})
			}).To(Panic())

			Expect(model.Parameters().FixedFlags()).To(Equal(newFakeModel().ps.FixedFlags()))
			expectObjectivesActive()
		})
	})

	DescribeTable("rejects bad configuration without solving",
		func(variable []string, opts estimate.Options) {
			_, err := orch.SolveWithVariable(ctx, model, solver, variable, opts)
			Expect(err).To(MatchError(estim.ErrConfiguration))
			Expect(solver.calls).To(BeZero())
			Expect(model.Parameters().FixedFlags()).To(Equal(newFakeModel().ps.FixedFlags()))
		},
		Entry("no variable parameters", []string{}, estimate.Options{}),
		Entry("unknown variable", []string{"k9"}, estimate.Options{}),
		Entry("unknown fixed value", []string{"k1"}, estimate.Options{FixedValues: map[string]float64{"zz": 1}}),
	)

	It("rejects a model whose parameters are all fixed when nothing is made variable", func() {
		model.ps = model.ps.Fix("k1", "k2", "k3")
		_, err := orch.SolveWithVariable(ctx, model, solver, []string{}, estimate.Options{})
		Expect(err).To(MatchError(estim.ErrConfiguration))
	})
})
