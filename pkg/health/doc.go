/*
Package health checks whether a deployed cloud resource is actually
serving, as opposed to merely having been created by Terraform.

A ResourceChecker answers two questions: is this one resource healthy,
and what is the health of every resource in a deployment. There are two
implementations. SimulatedResourceChecker always reports healthy, for
providers or test fixtures with no real health endpoint. HTTPResourceChecker
looks up the endpoint registered for a resource id in the map given to
NewHTTPResourceChecker and performs an HTTP GET against it via
HTTPChecker, treating any 2xx/3xx response as healthy; a resource with no
registered endpoint reports unhealthy.

# Usage

	checker := health.NewHTTPResourceChecker(map[string]string{
		"vpc-1": "http://10.0.1.5:8080/health",
	})

	healthy, message := checker.CheckResource(ctx, domain.ProviderAWS, "vpc-1")

	summary := checker.CheckDeployment(ctx, "deploy-42")
	// summary["status"] is "healthy" or "unhealthy"

# HTTPChecker

HTTPChecker is the single-shot HTTP probe HTTPResourceChecker is built
on. It is reusable on its own wherever a bare URL needs a pass/fail
health check, outside of the ResourceChecker abstraction:

	checker := health.NewHTTPChecker("http://10.0.1.5:8080/health").
		WithMethod("GET").
		WithStatusRange(200, 299).
		WithTimeout(5 * time.Second)

	result := checker.Check(ctx)
	if !result.Healthy {
		fmt.Println(result.Message)
	}

# Integration Points

  - pkg/worker: HealthCheckHandler drives a ResourceChecker as a task
    handler, so a post-deployment health check is itself a task in the
    execution plan, with the same retry/timeout machinery as any other
    step
  - pkg/drift does not use a ResourceChecker: its Detector obtains the
    actual resource state it compares against the plan on its own
*/
package health
