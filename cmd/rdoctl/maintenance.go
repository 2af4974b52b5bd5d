package main

import (
	"context"
	"fmt"
	"sort"

	"obra-rdo/internal/logger"
	"obra-rdo/internal/service"
)

func bootstrap(ctx context.Context, e env) error {
	created, err := service.NewAuthService(e.stores, e.cfg.Auth).Bootstrap(ctx)
	if err != nil {
		return err
	}
	if created {
		logger.Info("bootstrap: admin created", "username", e.cfg.Auth.AdminUser)
	} else {
		logger.Info("bootstrap: users already exist, nothing to do")
	}
	return nil
}

func normalizeDates(ctx context.Context, e env) error {
	changed, bad, err := e.reports.NormalizeDates(ctx)
	if err != nil {
		return err
	}
	logger.Info("normalize-dates: done", "changed", changed, "unparseable", len(bad))
	for _, id := range bad {
		fmt.Println("unparseable date:", id)
	}
	return nil
}

func renumberCheck(ctx context.Context, e env) error {
	res, err := e.reports.CheckNumbers(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("highest number: %d\n", res.Max)

	nums := make([]int, 0, len(res.Duplicates))
	for n := range res.Duplicates {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		fmt.Printf("duplicate %d: %v\n", n, res.Duplicates[n])
	}
	if len(res.Missing) > 0 {
		fmt.Printf("missing: %v\n", res.Missing)
	}
	for _, id := range res.Unnumbered {
		fmt.Println("unnumbered:", id)
	}
	if len(nums) == 0 && len(res.Missing) == 0 && len(res.Unnumbered) == 0 {
		logger.Info("renumber-check: numbering is consistent", "max", res.Max)
	}
	return nil
}
