package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Suryanandx/2d-code-verifier/internal/analyzer"
	"github.com/Suryanandx/2d-code-verifier/internal/decoder"
	apperrors "github.com/Suryanandx/2d-code-verifier/internal/errors"
	"github.com/Suryanandx/2d-code-verifier/internal/observer"
	"github.com/Suryanandx/2d-code-verifier/internal/repository"
	"github.com/Suryanandx/2d-code-verifier/internal/storage"
	"github.com/Suryanandx/2d-code-verifier/pkg/grading"
	"github.com/Suryanandx/2d-code-verifier/pkg/models"
)

// stubDecoder returns a fixed outcome and checks the image is on disk
type stubDecoder struct {
	payload  *decoder.Payload
	err      error
	block    bool
	sawFile  bool
	lastPath string
}

func (d *stubDecoder) Name() string { return "stub" }

func (d *stubDecoder) Decode(ctx context.Context, imagePath string) (*decoder.Payload, error) {
	d.lastPath = imagePath
	_, statErr := os.Stat(imagePath)
	d.sawFile = statErr == nil
	if d.block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", decoder.ErrDecodeFailed, ctx.Err())
	}
	return d.payload, d.err
}

type stubImages struct {
	data     []byte
	fetchErr error
	fetched  int
}

func (s *stubImages) ValidateImageURL(imageURL string) error {
	if imageURL == "" || imageURL[0] != 'h' {
		return repository.ErrInvalidImageURL
	}
	return nil
}

func (s *stubImages) FetchImage(ctx context.Context, imageURL string) (*storage.FetchedImage, error) {
	s.fetched++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return &storage.FetchedImage{Data: s.data, ContentType: "image/png"}, nil
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

func uniformGray(size int, value uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	return img
}

// symbolImage draws a modules×modules symbol with a solid L finder and a
// dashed timing border, centred in a white margin
func symbolImage(modules, moduleSize, margin int) image.Image {
	size := modules*moduleSize + 2*margin
	img := image.NewGray(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	last := modules - 1
	for r := 0; r < modules; r++ {
		for c := 0; c < modules; c++ {
			var dark bool
			switch {
			case c == 0 || r == last:
				dark = true
			case r == 0:
				dark = c%2 == 0
			case c == last:
				dark = r%2 == 1
			default:
				dark = (r*3+c*7)%5 == 0
			}
			if !dark {
				continue
			}
			for y := 0; y < moduleSize; y++ {
				for x := 0; x < moduleSize; x++ {
					img.SetGray(margin+c*moduleSize+x, margin+r*moduleSize+y, color.Gray{Y: 0})
				}
			}
		}
	}
	return img
}

// printedDataMatrix encodes contents as a real Data Matrix and prints it with
// square modules of moduleSize pixels inside a light margin
func printedDataMatrix(contents string, moduleSize, margin int, ink, paper uint8) image.Image {
	matrix, err := datamatrix.NewDataMatrixWriter().Encode(contents, gozxing.BarcodeFormat_DATA_MATRIX, 0, 0, nil)
	Expect(err).NotTo(HaveOccurred())

	w, h := matrix.GetWidth(), matrix.GetHeight()
	img := image.NewGray(image.Rect(0, 0, w*moduleSize+2*margin, h*moduleSize+2*margin))
	for i := range img.Pix {
		img.Pix[i] = paper
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !matrix.Get(x, y) {
				continue
			}
			for dy := 0; dy < moduleSize; dy++ {
				for dx := 0; dx < moduleSize; dx++ {
					img.SetGray(margin+x*moduleSize+dx, margin+y*moduleSize+dy, color.Gray{Y: ink})
				}
			}
		}
	}
	return img
}

func hasCondition(result *models.VerificationResult, code string, metric models.Metric) bool {
	for _, c := range result.Conditions {
		if c.Code == code && (metric == "" || c.Metric == metric) {
			return true
		}
	}
	return false
}

func appErrorType(err error) apperrors.ErrorType {
	appErr, ok := apperrors.As(err)
	Expect(ok).To(BeTrue(), "expected an AppError, got %v", err)
	return appErr.Type
}

var _ = Describe("VerificationService", func() {
	var (
		ctx       context.Context
		uploadDir string
		dec       *stubDecoder
		images    *stubImages
		reports   *repository.BoltReportRepository
		pool      *analyzer.WorkerPool
		events    observer.Subject
		counters  *observer.MetricsObserver
		deps      Dependencies
		svc       VerificationService
		fixedNow  time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		uploadDir = GinkgoT().TempDir()
		fixedNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

		uploads, err := storage.NewUploadStore(uploadDir, storage.RetentionDelete, nil)
		Expect(err).NotTo(HaveOccurred())
		reports, err = repository.NewBoltReportRepository(filepath.Join(GinkgoT().TempDir(), "reports.db"))
		Expect(err).NotTo(HaveOccurred())

		pool = analyzer.NewWorkerPool(2)
		pool.Start()

		events = observer.NewEventPublisher()
		counters = observer.NewMetricsObserver()
		events.Subscribe(counters)

		dec = &stubDecoder{err: fmt.Errorf("%w: no symbol", decoder.ErrDecodeFailed)}
		images = &stubImages{data: encodePNG(symbolImage(10, 4, 8))}

		deps = Dependencies{
			Analyzer:        analyzer.NewSymbolAnalyzer(),
			Grader:          grading.NewEngine(grading.DefaultTables()),
			Decoder:         dec,
			Uploads:         uploads,
			Images:          images,
			Reports:         reports,
			Pool:            pool,
			Events:          events,
			Defaults:        analyzer.DefaultOptions(),
			AnalysisTimeout: 5 * time.Second,
			DecodeTimeout:   5 * time.Second,
			FetchTimeout:    5 * time.Second,
			Now:             func() time.Time { return fixedNow },
		}
	})

	JustBeforeEach(func() {
		svc = NewVerificationService(deps)
	})

	AfterEach(func() {
		pool.Close()
		events.Wait()
		reports.Close()
	})

	uploadsLeft := func() int {
		entries, err := os.ReadDir(uploadDir)
		Expect(err).NotTo(HaveOccurred())
		return len(entries)
	}

	Describe("VerifyUpload", func() {
		When("the image is uniform mid-gray", func() {
			var (
				result *models.VerificationResult
				err    error
			)

			JustBeforeEach(func() {
				result, err = svc.VerifyUpload(ctx, UploadRequest{
					FileName:    "gray.png",
					ContentType: "image/png",
					Data:        encodePNG(uniformGray(50, 128)),
				})
			})

			It("reports the measurable metrics", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(*result.MinimumReflectance).To(BeNumerically("~", 50.2, 0.01))
				Expect(*result.MinimumEdgeContrast).To(BeZero())
				Expect(*result.Modulation).To(BeZero())
				Expect(*result.AxialNonUniformity).To(BeZero())
			})

			It("leaves unavailable metrics null and the overall ungradeable", func() {
				Expect(result.SymbolContrast).To(BeNil())
				Expect(result.GridNonUniformity).To(BeNil())
				Expect(result.QuietZone).To(BeNil())
				Expect(result.OverallGrade).To(Equal(models.Ungradeable))
				Expect(result.Grades).NotTo(HaveKey(models.MetricSymbolContrast))
				Expect(result.Grades).NotTo(HaveKey(models.MetricGridNonUniformity))
				Expect(result.Grades).NotTo(HaveKey(models.MetricQuietZone))
			})

			It("records the reasons as conditions", func() {
				Expect(hasCondition(result, models.ConditionMetricUnavailable, models.MetricSymbolContrast)).To(BeTrue())
				Expect(hasCondition(result, models.ConditionMetricUnavailable, models.MetricGridNonUniformity)).To(BeTrue())
				Expect(hasCondition(result, models.ConditionMetricUnavailable, models.MetricQuietZone)).To(BeTrue())
				Expect(hasCondition(result, models.ConditionSymbolNotFound, "")).To(BeTrue())
				Expect(hasCondition(result, models.ConditionDecodeFailed, "")).To(BeTrue())
			})

			It("samples the fixed traversal", func() {
				Expect(result.ScanPath.Source).To(Equal(string(analyzer.SourceFixed)))
				Expect(result.ScanPath.Index).To(BeZero())
				Expect(result.ScanLine).To(HaveLen(50))
			})

			It("stamps and persists the result", func() {
				Expect(result.ID).NotTo(BeEmpty())
				Expect(result.Timestamp).To(Equal(fixedNow))
				saved, getErr := svc.GetReport(ctx, result.ID)
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.OverallGrade).To(Equal(models.Ungradeable))
			})

			It("records the stored upload as the image path", func() {
				Expect(result.ImagePath).NotTo(BeEmpty())
				Expect(result.ImagePath).To(HavePrefix(uploadDir))
			})

			It("releases the upload after the decoder has read it", func() {
				Expect(dec.sawFile).To(BeTrue())
				Expect(uploadsLeft()).To(BeZero())
			})

			It("publishes events", func() {
				events.Wait()
				m := counters.GetMetrics()
				Expect(m.TotalVerifications).To(Equal(int64(1)))
				Expect(m.CompletedVerifications).To(Equal(int64(1)))
				Expect(m.OverallGrades).To(HaveKeyWithValue("UNGRADEABLE", int64(1)))
				Expect(m.DecodeOutcomes).To(HaveKeyWithValue("failed", int64(1)))
			})
		})

		When("the image holds a located symbol", func() {
			var data []byte

			BeforeEach(func() {
				data = encodePNG(symbolImage(10, 4, 8))
			})

			It("grades all seven metrics and takes the worst", func() {
				result, err := svc.VerifyUpload(ctx, UploadRequest{FileName: "label.png", Data: data})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Grades).To(HaveLen(7))
				Expect(result.Grades[models.MetricQuietZone]).To(Equal(models.GradeA))
				Expect(result.Grades[models.MetricAxialNonUniformity]).To(Equal(models.GradeA))
				Expect(result.OverallGrade).To(Equal(models.GradeA))
				Expect(result.Symbol).NotTo(BeNil())
				Expect(result.ScanPath.Source).To(Equal(string(analyzer.SourceLocated)))
				Expect(result.QuietZone.Compliant).To(BeTrue())
			})

			It("grades identically whether or not decoding succeeds", func() {
				failed, err := svc.VerifyUpload(ctx, UploadRequest{FileName: "label.png", Data: data})
				Expect(err).NotTo(HaveOccurred())

				dec.err = nil
				dec.payload = &decoder.Payload{Text: "]d2010950110153000310ABC", Symbology: "DataMatrix", Decoder: "stub"}
				decoded, err := svc.VerifyUpload(ctx, UploadRequest{FileName: "label.png", Data: data})
				Expect(err).NotTo(HaveOccurred())

				Expect(failed.Decode.Status).To(Equal(models.DecodeStatusFailed))
				Expect(failed.DecodedData).To(BeNil())
				Expect(decoded.Decode.Status).To(Equal(models.DecodeStatusDecoded))
				Expect(decoded.Grades).To(Equal(failed.Grades))
				Expect(decoded.OverallGrade).To(Equal(failed.OverallGrade))
			})

			It("keeps grading when the decode track times out", func() {
				dec.block = true
				deps.DecodeTimeout = 50 * time.Millisecond
				svc = NewVerificationService(deps)

				result, err := svc.VerifyUpload(ctx, UploadRequest{FileName: "label.png", Data: data})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Decode.Status).To(Equal(models.DecodeStatusFailed))
				Expect(result.OverallGrade).To(Equal(models.GradeA))
			})

			It("reports an unavailable decoder distinctly", func() {
				deps.Decoder = decoder.Disabled()
				svc = NewVerificationService(deps)

				result, err := svc.VerifyUpload(ctx, UploadRequest{FileName: "label.png", Data: data})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Decode.Status).To(Equal(models.DecodeStatusUnavailable))
				Expect(hasCondition(result, models.ConditionDecodeUnavailable, "")).To(BeTrue())
			})

			It("matches the expected payload and parses GS1 elements", func() {
				dec.err = nil
				dec.payload = &decoder.Payload{Text: "]d2010950110153000310ABC", Decoder: "stub"}

				result, err := svc.VerifyUpload(ctx, UploadRequest{
					FileName:     "label.png",
					Data:         data,
					ExpectedData: "]d2010950110153000310ABD",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(*result.DecodedData).To(Equal("]d2010950110153000310ABC"))
				Expect(result.PayloadMatch.Matches).To(BeFalse())
				Expect(result.PayloadMatch.Distance).To(Equal(1))
				Expect(result.GS1Elements).To(HaveLen(2))
				Expect(result.GS1Elements[0].AI).To(Equal("01"))
				Expect(result.GS1Elements[1].Value).To(Equal("ABC"))
			})

			It("records the caller's image reference before saving", func() {
				result, err := svc.VerifyUpload(ctx, UploadRequest{
					FileName: "label.png",
					Data:     data,
					ImageRef: "/srv/labels/batch-7/label.png",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.ImagePath).To(Equal("/srv/labels/batch-7/label.png"))

				saved, err := svc.GetReport(ctx, result.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(saved.ImagePath).To(Equal("/srv/labels/batch-7/label.png"))
			})

			It("applies request overrides", func() {
				fixed := "fixed"
				vertical := "vertical"
				result, err := svc.VerifyUpload(ctx, UploadRequest{
					FileName:  "label.png",
					Data:      data,
					Overrides: &models.AnalysisOverrides{ScanMode: &fixed, Axis: &vertical},
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.ScanPath.Source).To(Equal(string(analyzer.SourceFixed)))
			})
		})

		When("the image holds a cleanly printed Data Matrix", func() {
			var data []byte

			BeforeEach(func() {
				data = encodePNG(printedDataMatrix("0109501101020917", 4, 20, 15, 240))
				deps.Decoder = decoder.NewZXingDecoder(storage.LoadImageFile)
			})

			It("earns an A on every metric", func() {
				result, err := svc.VerifyUpload(ctx, UploadRequest{FileName: "gtin.png", Data: data})
				Expect(err).NotTo(HaveOccurred())

				Expect(*result.MinimumReflectance).To(BeNumerically("~", 5.88, 0.01))
				Expect(*result.MinimumEdgeContrast).To(BeZero())
				Expect(*result.SymbolContrast).To(BeNumerically("==", 225))
				Expect(*result.AxialNonUniformity).To(BeNumerically("~", 88.24, 0.01))
				Expect(*result.GridNonUniformity).To(BeNumerically(">", 100))
				Expect(result.QuietZone.Compliant).To(BeTrue())

				Expect(result.Grades).To(HaveLen(7))
				for metric, grade := range result.Grades {
					Expect(grade).To(Equal(models.GradeA), "metric %s", metric)
				}
				Expect(result.OverallGrade).To(Equal(models.GradeA))
			})

			It("decodes the payload in-process", func() {
				result, err := svc.VerifyUpload(ctx, UploadRequest{
					FileName:     "gtin.png",
					Data:         data,
					ExpectedData: "0109501101020917",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Decode.Status).To(Equal(models.DecodeStatusDecoded))
				Expect(*result.DecodedData).To(Equal("0109501101020917"))
				Expect(result.PayloadMatch.Matches).To(BeTrue())
			})
		})

		When("the request is unusable", func() {
			It("rejects an empty upload", func() {
				_, err := svc.VerifyUpload(ctx, UploadRequest{FileName: "empty.png"})
				Expect(appErrorType(err)).To(Equal(apperrors.ErrorTypeValidation))
			})

			It("fails undecodable bytes at the request level", func() {
				_, err := svc.VerifyUpload(ctx, UploadRequest{FileName: "notes.txt", Data: []byte("hello")})
				Expect(appErrorType(err)).To(Equal(apperrors.ErrorTypeProcessing))
				Expect(apperrors.GetStatusCode(err)).To(Equal(422))
				Expect(uploadsLeft()).To(BeZero())

				list, listErr := svc.ListReports(ctx, 0)
				Expect(listErr).NotTo(HaveOccurred())
				Expect(list).To(BeEmpty())
			})

			It("rejects invalid overrides", func() {
				bad := 300
				_, err := svc.VerifyUpload(ctx, UploadRequest{
					FileName:  "label.png",
					Data:      encodePNG(symbolImage(10, 4, 8)),
					Overrides: &models.AnalysisOverrides{Threshold: &bad},
				})
				Expect(appErrorType(err)).To(Equal(apperrors.ErrorTypeValidation))
			})

			It("rejects a fixed traversal outside the image", func() {
				deps.Defaults = analyzer.DefaultOptions().WithFixedTraversal(analyzer.Traversal{
					Axis: analyzer.AxisHorizontal, Index: 500, Channel: analyzer.ChannelRed,
				})
				svc = NewVerificationService(deps)

				_, err := svc.VerifyUpload(ctx, UploadRequest{FileName: "g.png", Data: encodePNG(uniformGray(20, 90))})
				Expect(appErrorType(err)).To(Equal(apperrors.ErrorTypeValidation))
				Expect(uploadsLeft()).To(BeZero())
			})

			It("is unavailable once the queue is closed", func() {
				pool.Close()
				_, err := svc.VerifyUpload(ctx, UploadRequest{FileName: "g.png", Data: encodePNG(uniformGray(20, 90))})
				Expect(appErrorType(err)).To(Equal(apperrors.ErrorTypeUnavailable))
			})
		})
	})

	Describe("VerifyURL", func() {
		It("fetches and grades the remote image", func() {
			result, err := svc.VerifyURL(ctx, models.VerifyURLRequest{URL: "https://labels.example.com/a.png"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ImagePath).To(Equal("https://labels.example.com/a.png"))
			Expect(result.OverallGrade).To(Equal(models.GradeA))
			Expect(images.fetched).To(Equal(1))
			Expect(uploadsLeft()).To(BeZero())
		})

		It("rejects invalid URLs before fetching", func() {
			_, err := svc.VerifyURL(ctx, models.VerifyURLRequest{URL: "ftp://x"})
			Expect(appErrorType(err)).To(Equal(apperrors.ErrorTypeValidation))
			Expect(images.fetched).To(BeZero())
		})

		It("maps fetch failures to network errors", func() {
			images.fetchErr = errors.New("server error: status code 503")
			_, err := svc.VerifyURL(ctx, models.VerifyURLRequest{URL: "https://labels.example.com/a.png"})
			Expect(appErrorType(err)).To(Equal(apperrors.ErrorTypeNetwork))

			events.Wait()
			Expect(counters.GetMetrics().FetchFailures).To(Equal(int64(1)))
		})

		It("is unavailable without an image repository", func() {
			deps.Images = nil
			svc = NewVerificationService(deps)
			_, err := svc.VerifyURL(ctx, models.VerifyURLRequest{URL: "https://labels.example.com/a.png"})
			Expect(appErrorType(err)).To(Equal(apperrors.ErrorTypeUnavailable))
		})
	})

	Describe("reports", func() {
		It("returns not found for unknown IDs", func() {
			_, err := svc.GetReport(ctx, "nope")
			Expect(appErrorType(err)).To(Equal(apperrors.ErrorTypeNotFound))
		})

		It("lists saved reports", func() {
			for i := 0; i < 3; i++ {
				_, err := svc.VerifyUpload(ctx, UploadRequest{FileName: "g.png", Data: encodePNG(uniformGray(20, 90))})
				Expect(err).NotTo(HaveOccurred())
			}
			list, err := svc.ListReports(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
		})

		It("is unavailable when persistence is disabled", func() {
			deps.Reports = nil
			svc = NewVerificationService(deps)
			_, err := svc.ListReports(ctx, 0)
			Expect(appErrorType(err)).To(Equal(apperrors.ErrorTypeUnavailable))

			result, err := svc.VerifyUpload(ctx, UploadRequest{FileName: "g.png", Data: encodePNG(uniformGray(20, 90))})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ID).NotTo(BeEmpty())
		})
	})
})
