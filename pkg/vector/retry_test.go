package vector_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/vaultspace/artifactd/pkg/vector"
)

var _ = Describe("Retry", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("DefaultRetryConfig", func() {
		It("provides sensible defaults", func() {
			config := vector.DefaultRetryConfig()
			Expect(config.MaxAttempts).To(Equal(3))
			Expect(config.InitialDelay).To(Equal(100 * time.Millisecond))
			Expect(config.MaxDelay).To(Equal(5 * time.Second))
			Expect(config.BackoffMultiplier).To(Equal(2.0))
			Expect(config.Jitter).To(BeTrue())
		})
	})

	Describe("DatabaseRetryConfig", func() {
		It("provides database-optimized defaults", func() {
			config := vector.DatabaseRetryConfig()
			Expect(config.MaxAttempts).To(Equal(5))
			Expect(config.InitialDelay).To(Equal(250 * time.Millisecond))
			Expect(config.MaxDelay).To(Equal(10 * time.Second))
			Expect(config.BackoffMultiplier).To(Equal(1.5))
			Expect(config.Jitter).To(BeTrue())
		})
	})

	Describe("IsRetryableError", func() {
		It("identifies retryable error message patterns", func() {
			for _, msg := range []string{
				"connection refused",
				"Connection Reset by peer",
				"deadlock detected",
				"serialization failure occurred",
				"broken pipe error",
			} {
				Expect(vector.IsRetryableError(errors.New(msg))).To(BeTrue(), msg)
			}
		})

		It("does not retry non-transient errors", func() {
			for _, msg := range []string{
				"syntax error in SQL",
				"permission denied",
				"constraint violation",
			} {
				Expect(vector.IsRetryableError(errors.New(msg))).To(BeFalse(), msg)
			}
		})

		It("returns false for nil", func() {
			Expect(vector.IsRetryableError(nil)).To(BeFalse())
		})

		It("does not retry context cancellation", func() {
			Expect(vector.IsRetryableError(context.Canceled)).To(BeFalse())
		})
	})

	Describe("WrapRetryableError", func() {
		It("respects an explicit retryable flag", func() {
			base := errors.New("base error")
			Expect(vector.IsRetryableError(vector.WrapRetryableError(base, true, "ctx"))).To(BeTrue())
			Expect(vector.IsRetryableError(vector.WrapRetryableError(base, false, "ctx"))).To(BeFalse())
		})

		It("passes nil through", func() {
			Expect(vector.WrapRetryableError(nil, true, "ctx")).To(BeNil())
		})
	})

	Describe("Retrier", func() {
		var retrier *vector.Retrier

		BeforeEach(func() {
			retrier = vector.NewRetrier(vector.RetryConfig{
				MaxAttempts:       3,
				InitialDelay:      10 * time.Millisecond,
				MaxDelay:          100 * time.Millisecond,
				BackoffMultiplier: 2.0,
				Jitter:            false,
			}, zap.NewNop())
		})

		It("executes an operation once on success", func() {
			callCount := 0
			result, err := retrier.ExecuteWithType(ctx, func(ctx context.Context, attempt int) (any, error) {
				callCount++
				return "success", nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("success"))
			Expect(callCount).To(Equal(1))
		})

		It("retries a retryable error until success", func() {
			callCount := 0
			result, err := retrier.ExecuteWithType(ctx, func(ctx context.Context, attempt int) (any, error) {
				callCount++
				if attempt < 3 {
					return nil, errors.New("connection refused")
				}
				return "success after retries", nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("success after retries"))
			Expect(callCount).To(Equal(3))
		})

		It("gives up after max attempts", func() {
			callCount := 0
			_, err := retrier.ExecuteWithType(ctx, func(ctx context.Context, attempt int) (any, error) {
				callCount++
				return nil, errors.New("connection timeout")
			})
			Expect(err).To(HaveOccurred())
			Expect(callCount).To(Equal(3))
			Expect(err.Error()).To(ContainSubstring("operation failed after 3 attempts"))
		})

		It("does not retry a non-retryable error", func() {
			callCount := 0
			_, err := retrier.ExecuteWithType(ctx, func(ctx context.Context, attempt int) (any, error) {
				callCount++
				return nil, errors.New("syntax error in SQL")
			})
			Expect(err).To(HaveOccurred())
			Expect(callCount).To(Equal(1))
		})
	})
})
